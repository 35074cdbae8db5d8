// Package core is the orchestration layer.  It composes transports,
// sockets and capabilities into complete operational modes and
// provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  socket  →  session  →  capability  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of streamsock (connect or
// probe).  Each mode owns its full lifecycle from opening sockets to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}
