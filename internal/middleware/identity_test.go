package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"app/internal/config"
	"app/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

// ハンドラが見たオーナーの確認用
type ownerResponse struct {
	UserID       int64  `json:"user_id"`
	SessionToken string `json:"session_token"`
	IsGuest      bool   `json:"is_guest"`
}

func newOwnerEchoServer(t *testing.T, cfg config.Config) *echo.Echo {
	t.Helper()

	e := echo.New()
	e.GET("/cart", func(c echo.Context) error {
		owner, ok := middleware.CartOwnerFromContext(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}

		res := ownerResponse{IsGuest: owner.IsGuest()}
		if owner.UserID != nil {
			res.UserID = *owner.UserID
		}
		if owner.SessionToken != nil {
			res.SessionToken = *owner.SessionToken
		}
		return c.JSON(http.StatusOK, res)
	}, middleware.ResolveCartOwner(cfg))

	return e
}

func decodeOwner(t *testing.T, rec *httptest.ResponseRecorder) ownerResponse {
	t.Helper()
	var r ownerResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func mustSignJWT(t *testing.T, secret string, sub int64) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": "USER",
		"tv":   0,
		"iat":  1,
		"exp":  9999999999,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

// Bearerトークンがあれば会員オーナー
func TestResolveCartOwner_JWT_UserOwner(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := newOwnerEchoServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+mustSignJWT(t, "test-secret", 42))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeOwner(t, rec)
	assert.False(t, out.IsGuest)
	assert.Equal(t, int64(42), out.UserID)
}

// 署名が不正なトークンは無視してゲスト扱い（401にはしない）
func TestResolveCartOwner_BadJWT_FallsBackToGuest(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := newOwnerEchoServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+mustSignJWT(t, "wrong-secret", 42))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeOwner(t, rec)
	assert.True(t, out.IsGuest)
	assert.NotEmpty(t, out.SessionToken)
}

// Cookieがあればそのトークンを使い回す
func TestResolveCartOwner_ExistingCookie(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := newOwnerEchoServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: middleware.GuestSessionCookieName, Value: "session-abc"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeOwner(t, rec)
	assert.True(t, out.IsGuest)
	assert.Equal(t, "session-abc", out.SessionToken)

	// 既存Cookieの使い回しでは新しいCookieを発行しない
	assert.Empty(t, rec.Header().Values("Set-Cookie"))
}

// 何も持っていなければトークンを発行してCookieで返す
func TestResolveCartOwner_MintsGuestSession(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := newOwnerEchoServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeOwner(t, rec)
	assert.True(t, out.IsGuest)
	assert.NotEmpty(t, out.SessionToken)

	// レスポンスのSet-Cookieとハンドラが見たトークンが一致する
	setCookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, middleware.GuestSessionCookieName+"=")
	assert.Contains(t, setCookie, out.SessionToken)
	assert.Contains(t, strings.ToLower(setCookie), "httponly")
}

// マージ後のCookie無効化
func TestClearGuestSessionCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	middleware.ClearGuestSessionCookie(c, false)

	setCookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, middleware.GuestSessionCookieName+"=")
	assert.Contains(t, setCookie, "Max-Age=0")
}
