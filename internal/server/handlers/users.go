package handlers

import (
	"context"

	"github.com/wgwall/walld/internal/server/dto"
	"github.com/wgwall/walld/internal/users"
)

// UserHandler serves account lookups.
type UserHandler struct {
	svc *users.Service
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Search finds an account by exact display name. Used by the register
// page to check availability.
func (h *UserHandler) Search(_ context.Context, req *dto.SearchRequest) (*dto.AuthResponse, error) {
	profile, err := h.svc.FindByName(req.PName)
	if err != nil {
		return nil, apiError(err)
	}
	return &dto.AuthResponse{Status: dto.StatusSuccess, User: profile}, nil
}
