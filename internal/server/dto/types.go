package dto

import (
	"github.com/wgwall/walld/internal/users"
	"github.com/wgwall/walld/internal/wall"
)

// Validatable is implemented by every request type. Validate runs after
// parameter binding and before the handler.
type Validatable interface {
	Validate() error
}

// HealthRequest has no parameters.
type HealthRequest struct{}

// Validate implements Validatable.
func (r *HealthRequest) Validate() error { return nil }

// HealthResponse reports liveness and the build version.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// PostsRequest selects one page of the wall.
type PostsRequest struct {
	Page    int    `query:"page"`
	PerPage int    `query:"per_page"`
	Filter  string `query:"filter"`
}

// Validate implements Validatable. Unknown filters are rejected rather
// than silently treated as "latest".
func (r *PostsRequest) Validate() error {
	switch wall.Filter(r.Filter) {
	case "", wall.FilterLatest, wall.FilterLove, wall.FilterGossip:
		return nil
	}
	return BadRequest("filter must be latest, love or gossip")
}

// CommentsRequest identifies one post.
type CommentsRequest struct {
	PID string `path:"pid"`
}

// Validate implements Validatable.
func (r *CommentsRequest) Validate() error {
	if r.PID == "" {
		return BadRequest("pid is required")
	}
	return nil
}

// CommentsResponse carries a post's full comment list, newest first.
type CommentsResponse struct {
	Status   string         `json:"status"`
	Comments []wall.Comment `json:"comments"`
}

// PublishResponse reports the id of a freshly published post.
type PublishResponse struct {
	Status string `json:"status"`
	PID    string `json:"pid"`
}

// StatusResponse is the bare success envelope.
type StatusResponse struct {
	Status string `json:"status"`
}

// LikeRequest increments one like counter.
type LikeRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Validate implements Validatable.
func (r *LikeRequest) Validate() error {
	if r.Type != string(wall.LikePost) && r.Type != string(wall.LikeComment) {
		return BadRequest("type must be post or comment")
	}
	if r.ID == "" {
		return BadRequest("id is required")
	}
	return nil
}

// LikeResponse reports the updated counter.
type LikeResponse struct {
	Status string `json:"status"`
	Likes  int    `json:"likes"`
}

// RegisterRequest creates a new account. Portrait is either a preset
// path or the result of a prior portrait upload.
type RegisterRequest struct {
	PName    string `json:"pname"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
	Portrait string `json:"portrait"`
}

// Validate implements Validatable. Field-level rules live in the users
// service; this only rejects requests that are structurally empty.
func (r *RegisterRequest) Validate() error {
	if r.PName == "" {
		return BadRequest("pname is required")
	}
	if r.Password == "" {
		return BadRequest("password is required")
	}
	return nil
}

// LoginRequest authenticates by display name and password.
type LoginRequest struct {
	PName    string `json:"pname"`
	Password string `json:"password"`
}

// Validate implements Validatable.
func (r *LoginRequest) Validate() error {
	if r.PName == "" || r.Password == "" {
		return BadRequest("pname and password are required")
	}
	return nil
}

// AuthResponse carries a profile and, after login, a signed token.
type AuthResponse struct {
	Status string        `json:"status"`
	User   users.Profile `json:"user"`
	Token  string        `json:"token,omitempty"`
}

// MeRequest has no parameters; the user comes from the bearer token.
type MeRequest struct{}

// Validate implements Validatable.
func (r *MeRequest) Validate() error { return nil }

// SearchRequest looks up an account by exact display name.
type SearchRequest struct {
	PName string `query:"pname"`
}

// Validate implements Validatable.
func (r *SearchRequest) Validate() error {
	if r.PName == "" {
		return BadRequest("pname is required")
	}
	return nil
}

// PortraitResponse reports the stored path of an uploaded portrait.
type PortraitResponse struct {
	Status   string `json:"status"`
	Portrait string `json:"portrait"`
}
