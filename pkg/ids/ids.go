// Package ids mints request identifiers for outbound calls.
//
// Each extractor owns its own Generator; there is no package-level state.
package ids

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator mints opaque, unique tokens.
type Generator interface {
	NewID() string
}

// UUIDGenerator returns random (version 4) UUIDs.
type UUIDGenerator struct {
	minted atomic.Int64
}

// NewUUIDGenerator creates a generator backed by google/uuid.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a fresh UUID string.
func (g *UUIDGenerator) NewID() string {
	g.minted.Add(1)
	return uuid.NewString()
}

// Minted returns how many ids this generator has produced.
func (g *UUIDGenerator) Minted() int64 {
	return g.minted.Load()
}

// Func adapts a plain function to Generator; handy for deterministic tests.
type Func func() string

// NewID calls f.
func (f Func) NewID() string { return f() }
