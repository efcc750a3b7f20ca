package auth

import (
	"context"
	"errors"

	"app/internal/repository"
)

// LogoutUsecase はセッションの失効。
// リフレッシュトークンをrevokeし、token_versionを進めて
// 発行済みアクセストークンもTokenVersionGuardで弾かせる。
type LogoutUsecase struct {
	userRepo repository.UserRepository
	rtRepo   repository.RefreshTokenRepository
	clock    Clock
}

func NewLogoutUsecase(
	userRepo repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	clock Clock,
) *LogoutUsecase {
	return &LogoutUsecase{
		userRepo: userRepo,
		rtRepo:   rtRepo,
		clock:    clock,
	}
}

func (u *LogoutUsecase) Execute(ctx context.Context, plainRefreshToken string) error {
	if plainRefreshToken == "" {
		return ErrInvalidRefreshToken
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, hashRefreshToken(plainRefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return ErrInvalidRefreshToken
		}
		return err
	}

	if err := u.rtRepo.Revoke(ctx, rt.ID, u.clock.Now()); err != nil {
		return err
	}

	//既に配ったアクセストークンの無効化はtvの不一致に任せる
	return u.userRepo.IncrementTokenVersion(ctx, rt.UserID)
}
