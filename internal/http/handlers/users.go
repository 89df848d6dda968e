package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/geocoder89/usershub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	Create(ctx context.Context, in user.CreateInput) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

// UsersHandler holds no per-request state. Failures are attached to the gin
// context and rendered by the error translator.
type UsersHandler struct {
	store UsersStore
}

func NewUsersHandler(store UsersStore) *UsersHandler {
	return &UsersHandler{store: store}
}

// parseID accepts only positive base-10 integers.
func parseID(ctx *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, user.ErrInvalidID
	}
	return id, nil
}

func fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var p user.Payload

	if err := BindPayload(ctx, &p); err != nil {
		fail(ctx, err)
		return
	}

	in, err := user.ValidateCreate(p)
	if err != nil {
		fail(ctx, err)
		return
	}

	u, err := h.store.Create(ctx.Request.Context(), in)
	if err != nil {
		fail(ctx, err)
		return
	}

	respond.JSON(ctx, http.StatusCreated, respond.Success("User created successfully", u))
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	users, err := h.store.List(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}

	if notModified(ctx, listETag(users)) {
		return
	}

	respond.JSON(ctx, http.StatusOK, respond.SuccessList("Users retrieved successfully", users, len(users)))
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	id, err := parseID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}

	u, err := h.store.GetByID(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}

	if notModified(ctx, userETag(u)) {
		return
	}

	respond.JSON(ctx, http.StatusOK, respond.Success("User retrieved successfully", u))
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, err := parseID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}

	var p user.Payload

	if err := BindPayload(ctx, &p); err != nil {
		fail(ctx, err)
		return
	}

	in, err := user.ValidateUpdate(p)
	if err != nil {
		fail(ctx, err)
		return
	}

	u, err := h.store.Update(ctx.Request.Context(), id, in)
	if err != nil {
		fail(ctx, err)
		return
	}

	respond.JSON(ctx, http.StatusOK, respond.Success("User updated successfully", u))
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, err := parseID(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}

	if err := h.store.Delete(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}

	respond.JSON(ctx, http.StatusOK, respond.Success("User deleted successfully", nil))
}
