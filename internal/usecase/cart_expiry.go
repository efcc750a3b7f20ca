package usecase

import (
	"context"
	"time"

	repo "app/internal/repository"

	"github.com/labstack/gommon/log"
)

// CartExpiryService は失効したゲストカートを定期的に掃除します。
// 読み取り側の遅延失効（FindByOwner）の保険で、観測上の契約は
// 「最終更新から24時間を過ぎたゲストカートは見えない」こと。
type CartExpiryService struct {
	cartRepo repo.CartRepository
	interval time.Duration
	logger   *log.Logger
}

func NewCartExpiryService(cartRepo repo.CartRepository, interval time.Duration, logger *log.Logger) *CartExpiryService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = log.New("cart-expiry")
	}
	return &CartExpiryService{
		cartRepo: cartRepo,
		interval: interval,
		logger:   logger,
	}
}

// Start は掃除ループを起動する。ctx のキャンセルで止まる。
func (s *CartExpiryService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// 1回分の掃除
func (s *CartExpiryService) sweep(ctx context.Context) {
	deleted, err := s.cartRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Errorf("expiry sweep: %v", err)
		return
	}
	if deleted > 0 {
		s.logger.Infof("expiry sweep: deleted %d guest carts", deleted)
	}
}
