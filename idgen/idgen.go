// Package idgen generates the identifiers used for trace IDs and ingest
// event IDs. The strategy is a Generator chosen at construction time.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID
// (e.g. "trc_", "evt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7. Prefixed variants compose on top.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string, optionally carrying one of prefixes, and
// returns it normalised (lower case UUID, prefix kept).
func Parse(s string, prefixes ...string) (string, error) {
	prefix := ""
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			prefix = p
			break
		}
	}
	u, err := uuid.Parse(strings.TrimPrefix(s, prefix))
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return prefix + u.String(), nil
}
