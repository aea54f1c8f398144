package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/possibilitysolutions/useradmin/internal/config"
	"github.com/possibilitysolutions/useradmin/internal/domain/user"
)

type AdminUserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	ListNonAdmin(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error)
	SetStatus(ctx context.Context, id string, active bool) (user.User, error)
	Delete(ctx context.Context, id string) error
}

// AdminUsersHandler is the admin-only user management surface. Routing
// guarantees the caller is an authenticated admin; what is enforced here
// is the target-side rule: admin accounts can never be read or mutated
// through these endpoints.
type AdminUsersHandler struct {
	users AdminUserStore
}

func NewAdminUsersHandler(users AdminUserStore) *AdminUsersHandler {
	return &AdminUsersHandler{users: users}
}

// loadTarget resolves the :id route param. Existence is checked before
// the role of the target: a missing user is a plain 404, an admin target
// is a 403. Returns ok=false once a response has been written.
func (h *AdminUsersHandler) loadTarget(ctx *gin.Context) (user.User, bool) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return user.User{}, false
		}

		RespondInternal(ctx, "Failed to fetch user")
		return user.User{}, false
	}

	if u.IsAdmin() {
		RespondForbidden(ctx, "admin_protected", "Action not allowed on admin users")
		return user.User{}, false
	}

	return u, true
}

func (h *AdminUsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	users, err := h.users.ListNonAdmin(cctx)

	if err != nil {
		RespondInternal(ctx, "Failed to fetch users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"users":   users,
		"count":   len(users),
	})
}

func (h *AdminUsersHandler) Get(ctx *gin.Context) {
	u, ok := h.loadTarget(ctx)

	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    u,
	})
}

func (h *AdminUsersHandler) Update(ctx *gin.Context) {
	target, ok := h.loadTarget(ctx)

	if !ok {
		return
	}

	var req user.UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.Update(cctx, target.ID, req)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondUnprocessable(ctx, "email_taken", "Email already exists", nil)
			return
		}

		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Failed to update user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User updated successfully",
		"user":    u,
	})
}

func (h *AdminUsersHandler) Block(ctx *gin.Context) {
	h.setStatus(ctx, false, "User blocked successfully")
}

func (h *AdminUsersHandler) Unblock(ctx *gin.Context) {
	h.setStatus(ctx, true, "User unblocked successfully")
}

// setStatus is idempotent: blocking a blocked user (or unblocking an
// active one) succeeds and returns the unchanged record.
func (h *AdminUsersHandler) setStatus(ctx *gin.Context, active bool, message string) {
	target, ok := h.loadTarget(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.SetStatus(cctx, target.ID, active)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Failed to update user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"user":    u,
	})
}

func (h *AdminUsersHandler) Delete(ctx *gin.Context) {
	target, ok := h.loadTarget(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.users.Delete(cctx, target.ID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Failed to delete user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted successfully",
	})
}
