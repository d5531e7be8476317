package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true}
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Media", false},
		{"Stylesheet", false},
		{"Document", false},
		{"Script", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.resType); got != tt.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", tt.resType, got, tt.want)
		}
	}
}

func TestRefuse(t *testing.T) {
	// WHAT: Requests the validator refuses are blocked whatever their type.
	// WHY: With private networks blocked, the browser must not reach internal
	// hosts through redirects or page-initiated loads.
	internal := errors.New("private address")
	validate := func(u string) error {
		if u == "http://10.0.0.5/admin" {
			return internal
		}
		return nil
	}
	set := map[string]bool{"images": true}
	tests := []struct {
		name     string
		validate func(string) error
		resType  string
		url      string
		want     bool
	}{
		{"public document", validate, "Document", "https://example.com/policy", false},
		{"redirect to private", validate, "Document", "http://10.0.0.5/admin", true},
		{"script fetch to private", validate, "XHR", "http://10.0.0.5/admin", true},
		{"blocked type", validate, "Image", "https://example.com/logo.png", true},
		{"no validator", nil, "Document", "http://10.0.0.5/admin", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := refuse(set, tt.validate, tt.resType, tt.url); got != tt.want {
				t.Errorf("refuse = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRender_NoBrowser(t *testing.T) {
	// WHAT: Rendering without a configured browser fails immediately.
	// WHY: The caller falls back to the fetched body.
	r := New(Config{})
	if _, err := r.Render(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error without RemoteURL")
	}
}

func TestRender_UnreachableBrowser(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	r := New(Config{RemoteURL: addr, NavTimeout: time.Second})
	if _, err := r.Render(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error for unreachable browser")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}
