package usecase

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// オーナー（会員 or ゲスト）はIdentity解決ミドルウェアが決め、ここへ渡されます。
type CartUsecase struct {
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// 明細1行の表示用DTO。
// unit_price はスナップショット、live_price は現在のカタログ価格。
type CartLineResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	UnitPrice int64  `json:"unit_price"`
	LivePrice int64  `json:"live_price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type CartResponse struct {
	Items      []CartLineResponse `json:"items"`
	TotalPrice int64              `json:"total_price"`
	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
}

type AddCartItemInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければ空のカートを作って返す）。
func (u *CartUsecase) GetCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	cart, err := u.getOrCreateCart(ctx, owner)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, cart), nil
}

// AddToCart はカートに追加（同一商品は数量加算、単価スナップショットは今回の価格で上書き）。
// 在庫チェックは「今回追加する数量」に対してだけ行う。
func (u *CartUsecase) AddToCart(ctx context.Context, owner model.CartOwner, in AddCartItemInput) (CartResponse, error) {
	if in.Quantity < 1 {
		return CartResponse{}, ErrInvalidQuantity
	}
	if in.ProductID <= 0 {
		return CartResponse{}, ErrProductNotFound
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, ErrProductNotFound
	}
	if err != nil {
		return CartResponse{}, err
	}
	if !p.IsActive || p.Stock <= 0 {
		return CartResponse{}, ErrOutOfStock
	}
	if p.Stock < in.Quantity {
		return CartResponse{}, &InsufficientStockError{Available: p.Stock}
	}

	cart, err := u.getOrCreateCart(ctx, owner)
	if err != nil {
		return CartResponse{}, err
	}

	cart.AddItem(in.ProductID, in.Quantity, p.Price)

	saved, err := u.cartRepo.Save(ctx, cart)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, saved), nil
}

// 数量変更（上書き、加算しない）。0なら削除と同じ。
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, owner model.CartOwner, productID int64, qty int64) (CartResponse, error) {
	if qty < 0 {
		return CartResponse{}, ErrInvalidQuantity
	}

	cart, err := u.getOrCreateCart(ctx, owner)
	if err != nil {
		return CartResponse{}, err
	}

	// 対象明細が無ければカートに触らず終了
	if !hasLine(cart, productID) {
		return CartResponse{}, model.ErrItemNotFound
	}

	// 増減する場合だけ商品と在庫を再確認する
	if qty > 0 {
		p, err := u.productRepo.FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, ErrProductNotFound
		}
		if err != nil {
			return CartResponse{}, err
		}
		if !p.IsActive || p.Stock <= 0 {
			return CartResponse{}, ErrOutOfStock
		}
		if p.Stock < qty {
			return CartResponse{}, &InsufficientStockError{Available: p.Stock}
		}
	}

	if err := cart.UpdateItemQuantity(productID, qty); err != nil {
		return CartResponse{}, err
	}

	saved, err := u.cartRepo.Save(ctx, cart)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, saved), nil
}

// 明細削除。無くてもエラーにしない（冪等）。
func (u *CartUsecase) RemoveFromCart(ctx context.Context, owner model.CartOwner, productID int64) (CartResponse, error) {
	cart, err := u.getOrCreateCart(ctx, owner)
	if err != nil {
		return CartResponse{}, err
	}

	cart.RemoveItem(productID)

	saved, err := u.cartRepo.Save(ctx, cart)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, saved), nil
}

// 明細を空にする（冪等）。カートのレコード自体は残る。
func (u *CartUsecase) ClearCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	cart, err := u.getOrCreateCart(ctx, owner)
	if err != nil {
		return CartResponse{}, err
	}

	cart.ClearItems()

	saved, err := u.cartRepo.Save(ctx, cart)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, saved), nil
}

// オーナーのカートを取得し、無ければ空で作る。
// 作成レースに負けた側はユニーク制約違反を受けて読み直す。
func (u *CartUsecase) getOrCreateCart(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	cart, err := u.cartRepo.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	created, err := u.cartRepo.CreateEmpty(ctx, owner)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, repo.ErrDuplicateOwner) {
		return u.cartRepo.FindByOwner(ctx, owner)
	}
	return nil, err
}

func hasLine(cart *model.Cart, productID int64) bool {
	for _, it := range cart.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// 表示用に商品情報（名前・画像・現在価格）を読み取り時に結合する。
// 合計はあくまでスナップショット価格から計算した cart.TotalPrice。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart *model.Cart) CartResponse {
	items := make([]CartLineResponse, 0, len(cart.Items))

	for _, it := range cart.Items {
		line := CartLineResponse{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Subtotal:  it.UnitPriceSnapshot * it.Quantity,
		}

		if p, err := u.productRepo.FindByID(ctx, it.ProductID); err == nil {
			line.Name = p.Name
			line.ImageURL = p.ImageURL
			line.LivePrice = p.Price
		}

		items = append(items, line)
	}

	return CartResponse{
		Items:      items,
		TotalPrice: cart.TotalPrice,
		ExpiresAt:  cart.ExpiresAt,
	}
}
