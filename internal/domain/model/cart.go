package model

import (
	"errors"
	"time"
)

// 更新対象の明細がカートに無い
var ErrItemNotFound = errors.New("item not found in cart")

// 1オーナーにつきカートは1つ。
// オーナーは会員（owner_user_id）かゲスト（owner_session_token）のどちらか一方。
// ゲストカートだけ expires_at を持つ（最終更新から24時間で失効）。
type Cart struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerUserID       *int64     `gorm:"uniqueIndex" json:"owner_user_id,omitempty"`
	OwnerSessionToken *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	Items             []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	TotalPrice        int64      `gorm:"not null;default:0" json:"total_price"`
	ExpiresAt         *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// オーナーを値として取り出す
func (c *Cart) Owner() CartOwner {
	return CartOwner{UserID: c.OwnerUserID, SessionToken: c.OwnerSessionToken}
}

// オーナーを差し替える（ゲスト→会員の付け替えで使う）
func (c *Cart) SetOwner(owner CartOwner) {
	c.OwnerUserID = owner.UserID
	c.OwnerSessionToken = owner.SessionToken
}

// ゲストカートかどうか
func (c *Cart) IsGuest() bool {
	return c.Owner().IsGuest()
}

// 失効済みかどうか（expires_atが無ければ失効しない）
func (c *Cart) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// 明細を追加。同一商品は数量を加算し、単価スナップショットは今回の価格で上書きする。
func (c *Cart) AddItem(productID int64, qty int64, unitPrice int64) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			c.Items[i].UnitPriceSnapshot = unitPrice
			c.RecalcTotal()
			return
		}
	}

	c.Items = append(c.Items, CartItem{
		CartID:            c.ID,
		ProductID:         productID,
		Quantity:          qty,
		UnitPriceSnapshot: unitPrice,
	})
	c.RecalcTotal()
}

// 明細の数量を上書き（加算しない）。0なら削除。対象が無ければ ErrItemNotFound。
func (c *Cart) UpdateItemQuantity(productID int64, qty int64) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			if qty == 0 {
				c.RemoveItem(productID)
				return nil
			}
			c.Items[i].Quantity = qty
			c.RecalcTotal()
			return nil
		}
	}
	return ErrItemNotFound
}

// 明細を削除。無ければ何もしない（冪等）。
func (c *Cart) RemoveItem(productID int64) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	c.RecalcTotal()
}

// 明細を空にする（冪等）。
func (c *Cart) ClearItems() {
	c.Items = []CartItem{}
	c.RecalcTotal()
}

// total_price を明細から再計算する。保存境界で必ず呼ぶ。
func (c *Cart) RecalcTotal() int64 {
	var total int64 = 0
	for _, it := range c.Items {
		total += it.UnitPriceSnapshot * it.Quantity
	}
	c.TotalPrice = total
	return total
}
