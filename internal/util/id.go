package util

import "github.com/rs/xid"

// NewID returns a time-ordered unique identifier, optionally prefixed.
func NewID(prefix string) string {
	id := xid.New().String()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
