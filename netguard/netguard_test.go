package netguard

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://203.0.113.10/policy", false},
		{"http://198.51.100.7/hook", false},
		{"ftp://evil.com/data", true},      // bad scheme
		{"javascript:alert(1)", true},      // bad scheme
		{"http:///nohost", true},           // no host
		{"http://127.0.0.1/admin", true},   // loopback
		{"http://10.0.0.1/internal", true}, // private
		{"http://192.168.1.1/api", true},   // private
		{"http://[::1]/api", true},         // IPv6 loopback
		{"http://172.16.0.1/secret", true}, // private
		{"http://169.254.169.254/", true},  // cloud metadata
		{"http://0.0.0.0:8080/", true},     // unspecified
		{"http://localhost:9000/", true},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error=%v, wantErr=%v", tt.url, err, tt.wantErr)
		}
	}
}

func TestCheckScheme(t *testing.T) {
	if _, err := CheckScheme("file:///etc/passwd"); !errors.Is(err, ErrUnsafeScheme) {
		t.Fatalf("expected ErrUnsafeScheme, got %v", err)
	}
	// Private addresses pass: only the scheme and host are checked.
	u, err := CheckScheme("HTTP://127.0.0.1:8080/x")
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "127.0.0.1:8080" {
		t.Fatalf("host = %q", u.Host)
	}
}

func TestIsPrivateIP(t *testing.T) {
	for _, s := range []string{"10.1.2.3", "172.31.255.255", "192.168.0.1", "100.64.0.1", "fd00::1", "fe80::1"} {
		if !IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be private", s)
		}
	}
	for _, s := range []string{"8.8.8.8", "172.32.0.1", "2001:4860:4860::8888"} {
		if IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be public", s)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}

	// Exactly at the limit is accepted.
	if _, err := LimitedReadAll(bytes.NewReader(make([]byte, 10)), 10); err != nil {
		t.Fatalf("at limit: %v", err)
	}

	_, err = LimitedReadAll(bytes.NewReader(make([]byte, 100)), 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

// countingReader records how many bytes were pulled from it.
type countingReader struct {
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func TestLimitedReadAll_StopsEarly(t *testing.T) {
	// WHAT: An endless body is abandoned just past the limit.
	// WHY: An oversized document must never be buffered whole.
	r := &countingReader{}
	if _, err := LimitedReadAll(r, 1<<10); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if r.n > 1<<12 {
		t.Fatalf("read %d bytes for a 1 KiB limit", r.n)
	}
}
