package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/possibilitysolutions/useradmin/internal/config"
	"github.com/possibilitysolutions/useradmin/internal/domain/user"
	"github.com/possibilitysolutions/useradmin/internal/http/middlewares"
	"github.com/possibilitysolutions/useradmin/internal/observability"
	"github.com/possibilitysolutions/useradmin/internal/security"
)

// Small consumer-side interfaces so tests can fake the store and the
// token plumbing independently.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

type AuthHandler struct {
	users   UserStore
	jwt     TokenIssuer
	revoker TokenRevoker
	prom    *observability.Prom
}

func NewAuthHandler(users UserStore, jwt TokenIssuer, revoker TokenRevoker, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		users:   users,
		jwt:     jwt,
		revoker: revoker,
		prom:    prom,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Registration failed")
		return
	}

	// registration always produces an active, non-admin account
	u, err := h.users.Create(cctx, req.Name, req.Email, hash, user.RoleUser)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondUnprocessable(ctx, "email_taken", "Email is already in use.", nil)
			return
		}

		RespondInternal(ctx, "Registration failed")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"user":    u,
	})
}

// Login serves the standard portal; only role=user accounts may pass.
func (h *AuthHandler) Login(ctx *gin.Context) {
	h.login(ctx, "user", user.RoleUser,
		"Access denied. Please use the admin login endpoint for administrative accounts.")
}

// AdminLogin serves the admin panel; only role=admin accounts may pass.
func (h *AuthHandler) AdminLogin(ctx *gin.Context) {
	h.login(ctx, "admin", user.RoleAdmin,
		"Access denied. Admin credentials required.")
}

// Check order is fixed: existence, blocked status, portal role, then
// password. Unknown email and wrong password produce the identical
// generic message so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) login(ctx *gin.Context, portal, wantRole, wrongRoleMessage string) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.prom.ObserveLogin(portal, "invalid_credentials")
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
			return
		}

		h.prom.ObserveLogin(portal, "error")
		RespondInternal(ctx, "Failed to fetch user")
		return
	}

	if !foundUser.Status {
		h.prom.ObserveLogin(portal, "blocked")
		RespondForbidden(ctx, "account_blocked", "Your account is blocked. Please contact administrator.")
		return
	}

	if foundUser.Role != wantRole {
		h.prom.ObserveLogin(portal, "wrong_portal")
		RespondForbidden(ctx, "wrong_portal", wrongRoleMessage)
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		h.prom.ObserveLogin(portal, "invalid_credentials")
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	token, err := h.jwt.GenerateAccessToken(foundUser.ID, foundUser.Email, foundUser.Role)

	if err != nil {
		h.prom.ObserveLogin(portal, "error")
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.prom.ObserveLogin(portal, "ok")

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user":    foundUser,
	})
}

// Me returns the caller's current record, resolved fresh from the store
// rather than echoed from token claims.
func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnauthorized(ctx, "unauthenticated", "Unauthenticated")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// token outlived the account
			RespondUnauthorized(ctx, "unauthenticated", "Unauthenticated")
			return
		}

		RespondInternal(ctx, "Failed to fetch user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    u,
	})
}

// Logout revokes the presented token's jti for the remainder of its
// lifetime; the middleware rejects it on the very next request.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	jti, ok := middlewares.JTIFromContext(ctx)

	if !ok || jti == "" {
		RespondBadRequest(ctx, "logout_failed", "Logout failed")
		return
	}

	ttl := time.Duration(0)

	if exp, ok := middlewares.TokenExpiryFromContext(ctx); ok {
		ttl = time.Until(exp)
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.revoker.Revoke(cctx, jti, ttl); err != nil {
		RespondBadRequest(ctx, "logout_failed", "Logout failed")
		return
	}

	h.prom.ObserveRevocation()

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}
