package ratelimit

import "testing"

func TestMatch(t *testing.T) {
	c := DefaultConfig()
	defer c.Close()

	tests := []struct {
		method string
		path   string
		want   string // tier name, "" for none
	}{
		{"GET", "/api/health", ""},
		{"GET", "/img/post_000001_abc.png", ""},
		{"GET", "/portrait-img/default.png", ""},
		{"POST", "/api/auth/login", "auth"},
		{"POST", "/api/auth/register", "auth"},
		{"POST", "/api/auth/portrait", "auth"},
		{"POST", "/api/posts", "write"},
		{"POST", "/api/posts/000001/comments", "write"},
		{"POST", "/api/likes", "write"},
		{"GET", "/api/posts", "read"},
		{"GET", "/api/posts/000001/comments", "read"},
		{"GET", "/api/users/search", "read"},
	}
	for _, tt := range tests {
		tier := c.Match(tt.method, tt.path)
		got := ""
		if tier != nil {
			got = tier.Name
		}
		if got != tt.want {
			t.Errorf("Match(%s %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey("203.0.113.7", "write"); got != "ip:203.0.113.7:write" {
		t.Fatalf("BuildKey = %q", got)
	}
}
