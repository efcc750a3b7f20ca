package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
)

// 同じオーナーのカートが既にある（ユニーク制約違反）
var ErrDuplicateOwner = errors.New("cart already exists for owner")

// カートはオーナー単位の1ドキュメントとして保存・取得する。
// 1オーナー1カートはアプリ側の読んでから書く判定ではなく、
// ストアのユニーク制約で守る。
type CartRepository interface {
	// オーナーのカートを明細込みで1件取得。無い・失効済みは ErrNotFound。
	FindByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error)
	// 空のカートを作成。既にあれば ErrDuplicateOwner、オーナー不正は model.ErrInvalidOwner。
	CreateEmpty(ctx context.Context, owner model.CartOwner) (*model.Cart, error)
	// 変更済みカートを保存。total_price・updated_at・expires_at の再計算まで同一トランザクションで行う。
	Save(ctx context.Context, cart *model.Cart) (*model.Cart, error)
	// オーナーのカートを削除（明細ごと）。
	Delete(ctx context.Context, owner model.CartOwner) error
	// 失効したゲストカートをまとめて削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
