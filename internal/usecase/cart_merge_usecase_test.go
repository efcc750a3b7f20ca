package usecase_test

import (
	"context"
	"errors"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCartMergeUsecase_NoSessionToken(t *testing.T) {
	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	merged := uc.Merge(context.Background(), 42, "")

	assert.Nil(t, merged)
	cRepo.AssertNotCalled(t, "FindByOwner", mock.Anything, mock.Anything)
}

func TestCartMergeUsecase_NoGuestCart(t *testing.T) {
	guestOwner := model.GuestOwner("session-abc")

	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	cRepo.On("FindByOwner", mock.Anything, guestOwner).Return(nil, repo.ErrNotFound)

	merged := uc.Merge(context.Background(), 42, "session-abc")

	assert.Nil(t, merged)
	cRepo.AssertExpectations(t)
}

func TestCartMergeUsecase_EmptyGuestCartDiscarded(t *testing.T) {
	guestOwner := model.GuestOwner("session-abc")
	token := "session-abc"

	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	cRepo.On("FindByOwner", mock.Anything, guestOwner).
		Return(&model.Cart{ID: 1, OwnerSessionToken: &token}, nil)
	cRepo.On("Delete", mock.Anything, guestOwner).Return(nil)

	merged := uc.Merge(context.Background(), 42, "session-abc")

	assert.Nil(t, merged)
	cRepo.AssertExpectations(t)
}

func TestCartMergeUsecase_RekeyWhenNoAccountCart(t *testing.T) {
	// 会員カートが無ければゲストカートをそのまま付け替える
	guestOwner := model.GuestOwner("session-abc")
	accountOwner := model.UserOwner(42)
	token := "session-abc"

	guest := &model.Cart{ID: 1, OwnerSessionToken: &token}
	guest.AddItem(1, 2, 100)

	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	cRepo.On("FindByOwner", mock.Anything, guestOwner).Return(guest, nil)
	cRepo.On("FindByOwner", mock.Anything, accountOwner).Return(nil, repo.ErrNotFound)
	cRepo.On("Save", mock.Anything, mock.MatchedBy(func(c *model.Cart) bool {
		return c.OwnerUserID != nil && *c.OwnerUserID == 42 && c.OwnerSessionToken == nil
	})).Return(nil, nil)

	merged := uc.Merge(context.Background(), 42, "session-abc")

	assert.NotNil(t, merged)
	assert.Equal(t, int64(42), *merged.OwnerUserID)
	assert.Equal(t, int64(200), merged.TotalPrice)
	cRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestCartMergeUsecase_AdditiveMerge(t *testing.T) {
	// {P1:2} + {P1:1, P2:1} → {P1:3, P2:1}。スナップショットはゲスト側の値で上書き。
	guestOwner := model.GuestOwner("session-abc")
	accountOwner := model.UserOwner(42)
	token := "session-abc"
	userID := int64(42)

	guest := &model.Cart{ID: 1, OwnerSessionToken: &token}
	guest.AddItem(1, 2, 100)

	account := &model.Cart{ID: 2, OwnerUserID: &userID}
	account.AddItem(1, 1, 110)
	account.AddItem(2, 1, 50)

	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	cRepo.On("FindByOwner", mock.Anything, guestOwner).Return(guest, nil)
	cRepo.On("FindByOwner", mock.Anything, accountOwner).Return(account, nil)
	cRepo.On("Save", mock.Anything, account).Return(nil, nil)
	cRepo.On("Delete", mock.Anything, guestOwner).Return(nil)

	merged := uc.Merge(context.Background(), 42, "session-abc")

	assert.NotNil(t, merged)
	assert.Equal(t, 2, len(merged.Items))
	assert.Equal(t, int64(3), merged.Items[0].Quantity)
	assert.Equal(t, int64(100), merged.Items[0].UnitPriceSnapshot)
	assert.Equal(t, int64(1), merged.Items[1].Quantity)
	assert.Equal(t, int64(350), merged.TotalPrice)
	cRepo.AssertExpectations(t)
}

func TestCartMergeUsecase_RekeyRace_FallsBackToMerge(t *testing.T) {
	// 付け替え中に会員カートができた場合は読み直して統合に回る
	guestOwner := model.GuestOwner("session-abc")
	accountOwner := model.UserOwner(42)
	token := "session-abc"
	userID := int64(42)

	guest := &model.Cart{ID: 1, OwnerSessionToken: &token}
	guest.AddItem(1, 2, 100)

	account := &model.Cart{ID: 2, OwnerUserID: &userID}

	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	cRepo.On("FindByOwner", mock.Anything, guestOwner).Return(guest, nil)
	cRepo.On("FindByOwner", mock.Anything, accountOwner).Return(nil, repo.ErrNotFound).Once()
	cRepo.On("Save", mock.Anything, guest).Return(nil, repo.ErrDuplicateOwner).Once()
	cRepo.On("FindByOwner", mock.Anything, accountOwner).Return(account, nil).Once()
	cRepo.On("Save", mock.Anything, account).Return(nil, nil).Once()
	cRepo.On("Delete", mock.Anything, guestOwner).Return(nil)

	merged := uc.Merge(context.Background(), 42, "session-abc")

	assert.NotNil(t, merged)
	assert.Equal(t, int64(2), merged.Items[0].Quantity)
	assert.Equal(t, int64(200), merged.TotalPrice)
	cRepo.AssertExpectations(t)
}

func TestCartMergeUsecase_SaveErrorSwallowed(t *testing.T) {
	// マージの失敗はログインを止めない
	guestOwner := model.GuestOwner("session-abc")
	accountOwner := model.UserOwner(42)
	token := "session-abc"
	userID := int64(42)

	guest := &model.Cart{ID: 1, OwnerSessionToken: &token}
	guest.AddItem(1, 2, 100)

	account := &model.Cart{ID: 2, OwnerUserID: &userID}

	cRepo := new(CartRepoMock)
	uc := usecase.NewCartMergeUsecase(cRepo, nil)

	cRepo.On("FindByOwner", mock.Anything, guestOwner).Return(guest, nil)
	cRepo.On("FindByOwner", mock.Anything, accountOwner).Return(account, nil)
	cRepo.On("Save", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	merged := uc.Merge(context.Background(), 42, "session-abc")

	assert.Nil(t, merged)
	cRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
