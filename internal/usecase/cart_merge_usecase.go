package usecase

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/labstack/gommon/log"
)

// CartMergeUsecase はログイン/会員登録の成功直後に一度だけ呼ばれ、
// ゲストカートを会員カートへ取り込みます。
// ここでの失敗は認証を止めない。必ずログに残して握りつぶす。
type CartMergeUsecase struct {
	cartRepo repo.CartRepository
	logger   *log.Logger
}

func NewCartMergeUsecase(cartRepo repo.CartRepository, logger *log.Logger) *CartMergeUsecase {
	if logger == nil {
		logger = log.New("cart-merge")
	}
	return &CartMergeUsecase{cartRepo: cartRepo, logger: logger}
}

// Merge はゲストカートを会員カートへ統合し、統合後のカートを返す。
// 統合するものが無ければ nil（エラーではない）。
// どの失敗も呼び出し元へは返さない。
func (u *CartMergeUsecase) Merge(ctx context.Context, userID int64, sessionToken string) *model.Cart {
	if sessionToken == "" {
		return nil
	}

	guestOwner := model.GuestOwner(sessionToken)

	guest, err := u.cartRepo.FindByOwner(ctx, guestOwner)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		u.logger.Errorf("merge: find guest cart: %v", err)
		return nil
	}

	// 空のゲストカートは捨てるだけ
	if len(guest.Items) == 0 {
		if err := u.cartRepo.Delete(ctx, guestOwner); err != nil {
			u.logger.Errorf("merge: delete empty guest cart: %v", err)
		}
		return nil
	}

	accountOwner := model.UserOwner(userID)

	account, err := u.cartRepo.FindByOwner(ctx, accountOwner)
	if errors.Is(err, repo.ErrNotFound) {
		// 会員カートが無ければゲストカートをそのまま付け替える（明細を保ったO(1)の道）
		guest.SetOwner(accountOwner)
		rekeyed, saveErr := u.cartRepo.Save(ctx, guest)
		if saveErr == nil {
			return rekeyed
		}
		if !errors.Is(saveErr, repo.ErrDuplicateOwner) {
			u.logger.Errorf("merge: rekey guest cart: %v", saveErr)
			return nil
		}
		// 付け替えレースに負けた＝会員カートが今できた。読み直して統合に回る。
		account, err = u.cartRepo.FindByOwner(ctx, accountOwner)
		if err != nil {
			u.logger.Errorf("merge: refetch account cart: %v", err)
			return nil
		}
		guest.SetOwner(guestOwner)
	} else if err != nil {
		u.logger.Errorf("merge: find account cart: %v", err)
		return nil
	}

	// 会員カートへ明細を加算で取り込む。
	// スナップショット価格はゲスト側の値を引き継ぎ、在庫の再検証はしない（ベストエフォート）。
	for _, it := range guest.Items {
		account.AddItem(it.ProductID, it.Quantity, it.UnitPriceSnapshot)
	}

	merged, err := u.cartRepo.Save(ctx, account)
	if err != nil {
		u.logger.Errorf("merge: save account cart: %v", err)
		return nil
	}

	if err := u.cartRepo.Delete(ctx, guestOwner); err != nil {
		u.logger.Errorf("merge: delete guest cart: %v", err)
	}

	return merged
}
