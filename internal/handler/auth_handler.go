package handler

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"
	auth "app/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

const (
	refreshCookieName = "refresh_token"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

// /auth のHTTP。
// ログイン・会員登録の成功時にゲストカートのマージを1回だけ実行する。
type AuthHandler struct {
	registerUC   *auth.RegisterUserUsecase
	loginUC      *auth.LoginUsecase
	refreshUC    *auth.RefreshUsecase
	logoutUC     *auth.LogoutUsecase
	mergeUC      *usecase.CartMergeUsecase
	userRepo     repository.UserRepository
	refreshTTL   time.Duration
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(
	registerUC *auth.RegisterUserUsecase,
	loginUC *auth.LoginUsecase,
	refreshUC *auth.RefreshUsecase,
	logoutUC *auth.LogoutUsecase,
	mergeUC *usecase.CartMergeUsecase,
	userRepo repository.UserRepository,
	refreshTTL time.Duration,
	cfg config.Config,
) *AuthHandler {
	return &AuthHandler{
		registerUC:   registerUC,
		loginUC:      loginUC,
		refreshUC:    refreshUC,
		logoutUC:     logoutUC,
		mergeUC:      mergeUC,
		userRepo:     userRepo,
		refreshTTL:   refreshTTL,
		cookieSecure: cfg.CookieSecure,
	}
}

// /auth/register のリクエストボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	User model.User  `json:"user"`
	Cart *model.Cart `json:"cart,omitempty"` // マージされたカート（無ければ省略）
}

type loginResponse struct {
	User  model.User          `json:"user"`
	Token auth.JwtAccessToken `json:"token"`
	Cart  *model.Cart         `json:"cart,omitempty"`
}

// /auth 配下を登録
func (h *AuthHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/auth/register", h.register)
	e.POST("/auth/login", h.login)

	// refresh/logout はCookieのリフレッシュトークンで認証する
	e.POST("/auth/refresh", h.refresh)
	e.POST("/auth/logout", h.logout)

	g := e.Group("/auth")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(h.userRepo))
	g.GET("/profile", h.profile)
}

// RegisterはPOST /auth/registerのハンドラ
func (h *AuthHandler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	out, err := h.registerUC.Execute(c.Request().Context(), auth.RegisterUserInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidEmailFormat, auth.ErrPasswordTooShort, auth.ErrWeakPassword:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
		case auth.ErrEmailAlreadyExists:
			return c.JSON(http.StatusConflict, ErrorResponse{Error: "CONFLICT"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	// ゲストカートを会員カートへ（失敗しても登録は成功のまま）
	mergedCart := h.mergeGuestCart(c, out.User.ID)

	return c.JSON(http.StatusCreated, registerResponse{
		User: out.User,
		Cart: mergedCart,
	})
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	// User-Agentを取得（refreshtokenに紐付ける）
	userAgent := c.Request().Header.Get("User-Agent")

	out, side, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: userAgent,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
		case auth.ErrUserInactive:
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	// refresh cookie
	h.setRefreshCookie(c, side.PlainRefreshToken)

	//csrf cookie
	csrfToken, genErr := generateSecureToken(32)
	if genErr != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}
	h.setCsrfCookie(c, csrfToken)

	// ゲストカートを会員カートへ（失敗してもログインは成功のまま）
	mergedCart := h.mergeGuestCart(c, out.User.ID)

	return c.JSON(http.StatusOK, loginResponse{
		User:  out.User,
		Token: out.Token,
		Cart:  mergedCart,
	})
}

// POST /auth/refresh（リフレッシュトークンのローテーション）
func (h *AuthHandler) refresh(c echo.Context) error {
	if !h.checkCsrf(c) {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
	}

	plain := cookieValue(c, refreshCookieName)
	userAgent := c.Request().Header.Get("User-Agent")

	out, side, err := h.refreshUC.Execute(c.Request().Context(), auth.RefreshInput{
		PlainRefreshToken: plain,
		UserAgent:         userAgent,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidRefreshToken, auth.ErrRefreshReuse:
			h.clearAuthCookies(c)
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
		case auth.ErrUserInactive:
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	h.setRefreshCookie(c, side.PlainRefreshToken)

	csrfToken, genErr := generateSecureToken(32)
	if genErr != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}
	h.setCsrfCookie(c, csrfToken)

	return c.JSON(http.StatusOK, out.Token)
}

// POST /auth/logout
func (h *AuthHandler) logout(c echo.Context) error {
	if !h.checkCsrf(c) {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
	}

	plain := cookieValue(c, refreshCookieName)

	if err := h.logoutUC.Execute(c.Request().Context(), plain); err != nil {
		switch err {
		case auth.ErrInvalidRefreshToken:
			h.clearAuthCookies(c)
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	// セッション終了。残っているゲストセッションも一緒に片付ける。
	h.clearAuthCookies(c)
	middleware.ClearGuestSessionCookie(c, h.cookieSecure)

	return c.JSON(http.StatusOK, map[string]string{"message": "logout success"})
}

// GET /auth/profile
func (h *AuthHandler) profile(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	user, err := h.userRepo.FindByID(c.Request().Context(), userID)
	if err != nil || user == nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	return c.JSON(http.StatusOK, user)
}

// ゲストセッションがあればマージして、以後そのトークンを無効にする。
// マージ結果はレスポンスに同梱するだけで、失敗は認証結果に影響させない。
func (h *AuthHandler) mergeGuestCart(c echo.Context, userID int64) *model.Cart {
	token := middleware.GuestSessionFromRequest(c)
	if token == "" {
		return nil
	}

	merged := h.mergeUC.Merge(c.Request().Context(), userID, token)

	// マージの成否に関わらずトークンは使い終わり
	middleware.ClearGuestSessionCookie(c, h.cookieSecure)

	return merged
}

// CSRFのDouble Submitチェック。
// csrf_token Cookieと X-CSRF-Token ヘッダが同じ値であること。
func (h *AuthHandler) checkCsrf(c echo.Context) bool {
	header := c.Request().Header.Get(csrfHeaderName)
	cookie := cookieValue(c, csrfCookieName)
	return header != "" && header == cookie
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// refreshtoken をCookieにセット。
func (h *AuthHandler) setRefreshCookie(c echo.Context, plainRefresh string) {
	exp := time.Now().Add(h.refreshTTL)

	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    plainRefresh,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// csrftokenをCookieにセット
func (h *AuthHandler) setCsrfCookie(c echo.Context, csrfToken string) {
	exp := time.Now().Add(h.refreshTTL)

	c.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// refresh/csrf Cookieを無効化
func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, name := range []string{refreshCookieName, csrfCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == refreshCookieName,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

//middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

// ランダム文字列を作る。
func generateSecureToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 32
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
