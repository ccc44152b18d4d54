package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
)

type UserService interface {
	Register(ctx context.Context, p model.UserCreateRequest) (*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

type UserHandler struct {
	svc UserService
}

func RegisterUserRoutes(e *router.Group, h *UserHandler) {
	e.POST("/users", h.CreateUser)
	e.GET("/users/me", h.GetMe)
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) CreateUser(ctx *xhttp.RequestCtx) {
	var req model.UserCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	user, err := h.svc.Register(xhttp.Context(ctx), req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, user)
}

func (h *UserHandler) GetMe(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}
	user, err := h.svc.Get(xhttp.Context(ctx), userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, user)
}
