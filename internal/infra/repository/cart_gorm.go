package repository

import (
	"app/internal/domain/model"
	repo "app/internal/repository"
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postgresの一意制約違反
const uniqueViolationCode = "23505"

type CartGormRepository struct {
	db       *gorm.DB
	guestTTL time.Duration // ゲストカートの有効期間（通常24時間）
}

// DI
func NewCartGormRepository(db *gorm.DB, guestTTL time.Duration) *CartGormRepository {
	if guestTTL <= 0 {
		guestTTL = 24 * time.Hour
	}
	return &CartGormRepository{db: db, guestTTL: guestTTL}
}

// オーナー条件をWHEREに変換
func ownerScope(q *gorm.DB, owner model.CartOwner) *gorm.DB {
	if owner.UserID != nil {
		return q.Where("owner_user_id = ?", *owner.UserID)
	}
	return q.Where("owner_session_token = ?", *owner.SessionToken)
}

// 一意制約違反かどうか
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// オーナーのカートを明細込みで取得。
// 失効したゲストカートは削除して ErrNotFound を返す（遅延失効）。
func (r *CartGormRepository) FindByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var cart model.Cart
	err := ownerScope(r.db.WithContext(ctx), owner).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id asc") }).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if cart.IsExpired(time.Now()) {
		if delErr := r.deleteByID(ctx, cart.ID); delErr != nil {
			return nil, delErr
		}
		return nil, repo.ErrNotFound
	}

	return &cart, nil
}

// 空カートを作成。同じオーナーが既にいれば ErrDuplicateOwner。
// 競合判定は読んでから書くではなく、ユニーク制約の違反で行う。
func (r *CartGormRepository) CreateEmpty(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	cart := model.Cart{
		OwnerUserID:       owner.UserID,
		OwnerSessionToken: owner.SessionToken,
		Items:             []model.CartItem{},
		TotalPrice:        0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if owner.IsGuest() {
		exp := now.Add(r.guestTTL)
		cart.ExpiresAt = &exp
	}

	if err := r.db.WithContext(ctx).Create(&cart).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, repo.ErrDuplicateOwner
		}
		return nil, err
	}

	return &cart, nil
}

// 変更済みカートを保存する。
// total_price の再計算・updated_at・ゲストの expires_at 延長まで同一トランザクション。
// 読み手が items と total_price の食い違いを見ることはない。
func (r *CartGormRepository) Save(ctx context.Context, cart *model.Cart) (*model.Cart, error) {
	if err := cart.Owner().Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	cart.RecalcTotal()
	cart.UpdatedAt = now

	// ゲストは最終更新から24時間で失効、会員カートは失効しない
	if cart.IsGuest() {
		exp := now.Add(r.guestTTL)
		cart.ExpiresAt = &exp
	} else {
		cart.ExpiresAt = nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 同一カートへの同時更新を直列化する
		var locked model.Cart
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", cart.ID).
			First(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{
			"owner_user_id":       cart.OwnerUserID,
			"owner_session_token": cart.OwnerSessionToken,
			"total_price":         cart.TotalPrice,
			"expires_at":          cart.ExpiresAt,
			"updated_at":          cart.UpdatedAt,
		}
		if err := tx.Model(&model.Cart{}).
			Where("id = ?", cart.ID).
			Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return repo.ErrDuplicateOwner
			}
			return err
		}

		// 消えた明細を削除
		productIDs := make([]int64, 0, len(cart.Items))
		for _, it := range cart.Items {
			productIDs = append(productIDs, it.ProductID)
		}
		del := tx.Where("cart_id = ?", cart.ID)
		if len(productIDs) > 0 {
			del = del.Where("product_id NOT IN ?", productIDs)
		}
		if err := del.Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		// 残りの明細をUPSERT（同一カート内のproduct_idはユニーク）
		for i := range cart.Items {
			cart.Items[i].CartID = cart.ID
			cart.Items[i].UpdatedAt = now
			if cart.Items[i].CreatedAt.IsZero() {
				cart.Items[i].CreatedAt = now
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"quantity", "unit_price_snapshot", "updated_at",
				}),
			}).Create(&cart.Items[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// オーナーのカートを明細ごと削除。無ければ何もしない。
func (r *CartGormRepository) Delete(ctx context.Context, owner model.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	var cart model.Cart
	err := ownerScope(r.db.WithContext(ctx), owner).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return r.deleteByID(ctx, cart.ID)
}

// 失効したゲストカートをまとめて削除
func (r *CartGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64 = 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&model.Cart{}).
			Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("cart_id IN ?", ids).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ?", ids).Delete(&model.Cart{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})

	return deleted, err
}

// カート本体と明細を同一トランザクションで削除
func (r *CartGormRepository) deleteByID(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", cartID).Delete(&model.Cart{}).Error
	})
}
