package goma

// Policy captures the two independent toggles that shape the
// environment passed to the client's start routine. It is
// assembled once from buildcfg and read-only afterwards.
type Policy struct {
	// CacheOnly instructs the client to fall back gracefully
	// on auth failure instead of hard-failing. Set explicitly
	// by config, or inferred for CI-like environments (see
	// buildcfg.Assemble).
	CacheOnly bool

	// CI marks a CI environment.
	CI bool

	// HasConfigFile records whether an explicit config file
	// was provided; the auto-restart policy only applies
	// without one.
	HasConfigFile bool
}

// Environ returns the extra environment variables for the start
// routine.
func (p Policy) Environ() []string {
	var env []string

	if p.CacheOnly {
		env = append(
			env,
			"GOMA_FALLBACK_ON_AUTH_FAILURE=true",
		)
	}

	// On CI without an explicit config the local proxy should
	// come back by itself if it dies; nobody is watching.
	if p.CI && !p.HasConfigFile {
		env = append(
			env,
			"GOMA_START_COMPILER_PROXY=true",
		)
	}

	return env
}
