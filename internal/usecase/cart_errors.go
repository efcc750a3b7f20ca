package usecase

import (
	"errors"
	"fmt"
)

// カート操作の失敗の種類。
// どれも「検証で弾いた」エラーであり、カートは一切変更されていない。
var (
	// 数量が不正（正であるべき所に0以下、または負数）
	ErrInvalidQuantity = errors.New("invalid quantity")
	// 商品が存在しない
	ErrProductNotFound = errors.New("product not found")
	// 非公開または在庫ゼロ
	ErrOutOfStock = errors.New("product is not available")
)

// 要求数量が在庫を超えている。残り何個買えるかを持ち帰る。
type InsufficientStockError struct {
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d items available in stock", e.Available)
}
