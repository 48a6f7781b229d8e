// Package buildcfg assembles the read-only configuration used by
// the build tools. Settings come from an optional YAML file and a
// one-shot snapshot of the relevant environment variables; both are
// folded into an explicit Config value at startup so no code
// branches on ambient environment state later.
package buildcfg
