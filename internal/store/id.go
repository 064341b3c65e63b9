package store

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewID returns a monotonic ULID string. ulid.Make is safe for concurrent use.
func NewID() string {
	return ulid.Make().String()
}

// NewPrefixedID is used for ids that travel on the wire, e.g. "msg_01h...".
func NewPrefixedID(prefix string) string {
	return prefix + "_" + strings.ToLower(NewID())
}
