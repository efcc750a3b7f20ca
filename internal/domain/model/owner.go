package model

import "errors"

// 会員でもゲストでもない（または両方）のカートは不正
var ErrInvalidOwner = errors.New("cart owner must be exactly one of user or session")

// カートの持ち主。会員（UserID）かゲスト（SessionToken）のどちらか一方だけ。
type CartOwner struct {
	UserID       *int64
	SessionToken *string
}

// 会員のオーナーを作る
func UserOwner(userID int64) CartOwner {
	return CartOwner{UserID: &userID}
}

// ゲストのオーナーを作る
func GuestOwner(token string) CartOwner {
	return CartOwner{SessionToken: &token}
}

// どちらか一方だけが入っているか検証
func (o CartOwner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID > 0
	hasSession := o.SessionToken != nil && *o.SessionToken != ""

	if hasUser == hasSession {
		return ErrInvalidOwner
	}
	return nil
}

// ゲストかどうか
func (o CartOwner) IsGuest() bool {
	return o.SessionToken != nil && *o.SessionToken != ""
}
