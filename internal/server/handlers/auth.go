package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wgwall/walld/internal/server/dto"
	"github.com/wgwall/walld/internal/server/reqctx"
	"github.com/wgwall/walld/internal/users"
	"github.com/wgwall/walld/internal/wall/images"
)

// AuthHandler handles registration, login and the token-bound profile.
type AuthHandler struct {
	svc       *users.Service
	portraits *images.Store
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *users.Service, portraits *images.Store, jwtSecret []byte, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{svc: svc, portraits: portraits, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Register creates a new account. The client logs in separately.
func (h *AuthHandler) Register(_ context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	profile, err := h.svc.Register(req.PName, req.Password, req.Gender, req.Portrait)
	if err != nil {
		return nil, apiError(err)
	}
	return &dto.AuthResponse{Status: dto.StatusSuccess, User: profile}, nil
}

// Login checks credentials and returns the profile with a signed token.
func (h *AuthHandler) Login(_ context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	profile, err := h.svc.Login(req.PName, req.Password)
	if err != nil {
		return nil, apiError(err)
	}
	token, err := h.issueToken(profile)
	if err != nil {
		return nil, dto.InternalWithError("failed to sign token", err)
	}
	return &dto.AuthResponse{Status: dto.StatusSuccess, User: profile, Token: token}, nil
}

// Me returns the profile bound to the bearer token.
func (h *AuthHandler) Me(ctx context.Context, _ *dto.MeRequest) (*dto.AuthResponse, error) {
	profile, ok := reqctx.User(ctx)
	if !ok {
		return nil, dto.Unauthorized()
	}
	return &dto.AuthResponse{Status: dto.StatusSuccess, User: profile}, nil
}

// UploadPortrait stores one portrait image ahead of registration and
// returns the path to reference in the register call.
func (h *AuthHandler) UploadPortrait(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, dto.BadRequest("invalid multipart form"))
		return
	}
	files := []*images.Upload{}
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["portrait"] {
			u, err := readUpload(fh)
			if err != nil {
				writeError(w, err)
				return
			}
			files = append(files, &u)
		}
	}
	if len(files) != 1 {
		writeError(w, dto.BadRequest("exactly one portrait file is required"))
		return
	}
	if err := images.ValidatePortrait(*files[0]); err != nil {
		writeError(w, dto.BadRequest(err.Error()))
		return
	}
	path, err := h.portraits.Save("portrait", *files[0])
	if err != nil {
		writeError(w, dto.InternalWithError("failed to store portrait", err))
		return
	}
	writeJSON(w, dto.PortraitResponse{Status: dto.StatusSuccess, Portrait: path})
}

func (h *AuthHandler) issueToken(p users.Profile) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   p.ID,
		"pname": p.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(h.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}
