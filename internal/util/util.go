// Package util holds small helpers shared across the ledger packages.
package util

import (
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// GenUUID returns a random RFC 4122 UUID string.
func GenUUID() string {
	return uuid.New().String()
}

// GenShortID returns a compact url-safe id for user-editable records
// (periods, slot assignments, subjects).
func GenShortID() string {
	return shortuuid.New()
}
