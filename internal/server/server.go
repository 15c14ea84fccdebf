// Package server wires the HTTP API over the wall and users services.
package server

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/wgwall/walld/internal/server/handlers"
	"github.com/wgwall/walld/internal/server/ratelimit"
	"github.com/wgwall/walld/internal/users"
	"github.com/wgwall/walld/internal/wall"
	"github.com/wgwall/walld/internal/wall/images"
)

// Config holds the server-level settings.
type Config struct {
	Version   string
	JWTSecret []byte
	// TokenTTL bounds the lifetime of login tokens. Defaults to 7 days.
	TokenTTL time.Duration
	// MaxBodyBytes caps request bodies. Defaults to 10 MiB, which leaves
	// room for three full-size images plus multipart overhead.
	MaxBodyBytes int64
}

// Services are the domain dependencies the routes dispatch to.
type Services struct {
	Wall      *wall.Service
	Users     *users.Service
	Portraits *images.Store
	// ImageDir and PortraitDir are served under /img/ and /portrait-img/.
	ImageDir    string
	PortraitDir string
}

// Server routes HTTP requests to the handlers.
type Server struct {
	cfg    Config
	svc    Services
	limits *ratelimit.Config
	mux    *http.ServeMux
}

// New creates the server and registers all routes.
func New(cfg Config, svc Services) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		limits: ratelimit.DefaultConfig(),
		mux:    http.NewServeMux(),
	}

	health := handlers.NewHealthHandler(cfg.Version)
	auth := handlers.NewAuthHandler(svc.Users, svc.Portraits, cfg.JWTSecret, cfg.TokenTTL)
	user := handlers.NewUserHandler(svc.Users)
	wallH := handlers.NewWallHandler(svc.Wall)

	s.mux.Handle("GET /api/health", Wrap(s, health.Health))

	s.mux.Handle("POST /api/auth/register", Wrap(s, auth.Register))
	s.mux.Handle("POST /api/auth/login", Wrap(s, auth.Login))
	s.mux.Handle("POST /api/auth/portrait", WrapRaw(s, auth.UploadPortrait))
	s.mux.Handle("GET /api/auth/me", WrapAuth(s, auth.Me))
	s.mux.Handle("GET /api/users/search", Wrap(s, user.Search))

	s.mux.Handle("GET /api/posts", Wrap(s, wallH.Posts))
	s.mux.Handle("POST /api/posts", WrapRaw(s, wallH.PublishPost))
	s.mux.Handle("GET /api/posts/{pid}/comments", Wrap(s, wallH.Comments))
	s.mux.Handle("POST /api/posts/{pid}/comments", WrapRaw(s, wallH.PublishComment))
	s.mux.Handle("POST /api/likes", Wrap(s, wallH.Like))

	s.mux.Handle("GET /img/{name}", serveImage(svc.ImageDir))
	s.mux.Handle("GET /portrait-img/{name}", serveImage(svc.PortraitDir))
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return withRequestLog(s.mux)
}

// Close stops the rate limiter cleanup goroutines.
func (s *Server) Close() {
	s.limits.Close()
}

// serveImage serves one stored file by name. Names never contain path
// separators; anything else is a traversal attempt.
func serveImage(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, name))
	})
}
