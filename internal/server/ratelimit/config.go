// Defines the rate limit tiers and which routes they cover.

package ratelimit

import (
	"strings"
	"time"
)

// Tier is one named limit bucket family. Every caller is keyed by
// client IP: the wall has no per-user identity on the write path.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds the limiters for the three tiers.
type Config struct {
	// Auth covers login, registration and portrait upload.
	Auth Tier
	// Write covers publishing posts, comments and likes.
	Write Tier
	// Read covers everything else that hits the documents.
	Read Tier
}

// DefaultConfig creates the production tiers:
//   - auth: 5 req/min
//   - write: 30 req/min, burst 10
//   - read: 600 req/min, burst 100
func DefaultConfig() *Config {
	return &Config{
		Auth:  Tier{Name: "auth", Limiter: NewLimiter(5, time.Minute, 5)},
		Write: Tier{Name: "write", Limiter: NewLimiter(30, time.Minute, 10)},
		Read:  Tier{Name: "read", Limiter: NewLimiter(600, time.Minute, 100)},
	}
}

// Match returns the tier for a request, or nil for routes that are not
// rate limited (health check, stored images).
func (c *Config) Match(method, path string) *Tier {
	if path == "/api/health" {
		return nil
	}
	if strings.HasPrefix(path, "/img/") || strings.HasPrefix(path, "/portrait-img/") {
		return nil
	}
	if isAuthEndpoint(method, path) {
		return &c.Auth
	}
	if method == "POST" || method == "DELETE" {
		return &c.Write
	}
	if method == "GET" {
		return &c.Read
	}
	return nil
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	c.Auth.Limiter.Close()
	c.Write.Limiter.Close()
	c.Read.Limiter.Close()
}

func isAuthEndpoint(method, path string) bool {
	if method != "POST" {
		return false
	}
	switch path {
	case "/api/auth/login", "/api/auth/register", "/api/auth/portrait":
		return true
	}
	return false
}

// BuildKey creates a rate limit bucket key from the client IP and tier.
func BuildKey(ip, tierName string) string {
	return "ip:" + ip + ":" + tierName
}
