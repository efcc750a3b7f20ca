package middleware

import (
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/domain/model"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// contextに入れるカートオーナー（model.CartOwner）
	CtxCartOwnerKey = "cart_owner"

	// ゲストに発行するセッショントークンのCookie名
	GuestSessionCookieName = "guest_session"

	// ゲストセッションの寿命（ゲストカートのTTLと揃える）
	guestSessionTTL = 24 * time.Hour
)

// ResolveCartOwner はリクエストをカートのオーナーに対応づけるミドルウェア。
//  1. 有効なBearerトークンがあれば会員オーナー
//  2. 無ければ guest_session Cookieのトークンでゲストオーナー
//  3. それも無ければ新しいトークンを発行してCookieで返し、ゲストオーナーにする
//
// ログインしていなくても失敗しない。401はここからは返らない。
func ResolveCartOwner(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims, ok := parseBearerToken(c, cfg); ok {
				c.Set(CtxCartOwnerKey, model.UserOwner(claims.UserID))
				return next(c)
			}

			if ck, err := c.Cookie(GuestSessionCookieName); err == nil && ck.Value != "" {
				c.Set(CtxCartOwnerKey, model.GuestOwner(ck.Value))
				return next(c)
			}

			// 推測不能なトークンを発行して、以降のリクエストで使い回してもらう
			token := uuid.NewString()
			SetGuestSessionCookie(c, token, cfg.CookieSecure)
			c.Set(CtxCartOwnerKey, model.GuestOwner(token))

			return next(c)
		}
	}
}

// contextからカートオーナーを取り出す
func CartOwnerFromContext(c echo.Context) (model.CartOwner, bool) {
	owner, ok := c.Get(CtxCartOwnerKey).(model.CartOwner)
	if !ok || owner.Validate() != nil {
		return model.CartOwner{}, false
	}
	return owner, true
}

// リクエストが持っているゲストセッショントークン（無ければ空文字）
func GuestSessionFromRequest(c echo.Context) string {
	ck, err := c.Cookie(GuestSessionCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// ゲストセッションCookieをセット
func SetGuestSessionCookie(c echo.Context, token string, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     GuestSessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(guestSessionTTL),
	})
}

// ゲストセッションCookieを無効化（マージ後に呼ぶ）
func ClearGuestSessionCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     GuestSessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
