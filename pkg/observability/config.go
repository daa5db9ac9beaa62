package observability

import internalobs "github.com/karva-go/karva/internal/observability"

// Config is internal/observability's configuration shape, reused here by
// alias rather than duplicated: Init's provider-setup code and
// internal/observability's mode-aware wiring describe the same
// ServiceName/OTLPEndpoint/sampling/logging surface, so one declaration
// backs both packages.
type Config = internalobs.Config

// AppMode identifies the application execution mode (see internal/observability.AppMode).
type AppMode = internalobs.AppMode

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return internalobs.DefaultConfig()
}

const (
	ModeCLI   = internalobs.ModeCLI
	ModeMCP   = internalobs.ModeMCP
	ModeServe = internalobs.ModeServe
)
