package usecase_test

import (
	"context"
	"testing"
	"time"

	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCartExpiryService_SweepRuns(t *testing.T) {
	cRepo := new(CartRepoMock)

	swept := make(chan struct{}, 1)
	cRepo.On("DeleteExpired", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := usecase.NewCartExpiryService(cRepo, 10*time.Millisecond, nil)
	svc.Start(ctx)

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep was not executed")
	}
}

func TestCartExpiryService_StopsOnCancel(t *testing.T) {
	cRepo := new(CartRepoMock)
	cRepo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())

	svc := usecase.NewCartExpiryService(cRepo, 10*time.Millisecond, nil)
	svc.Start(ctx)

	cancel()
	time.Sleep(50 * time.Millisecond)

	// キャンセル後は呼ばれない
	calls := len(cRepo.Calls)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, len(cRepo.Calls))
}
