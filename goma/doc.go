// Package goma provisions the remote-compilation proxy client used
// to speed up native builds: it resolves the platform archive,
// downloads and verifies it against a pinned checksum, extracts it,
// keeps a small build-system config file in sync, and manages the
// client's login and local control process. Every operation does
// the minimum work whose preconditions do not already hold, and all
// operations degrade to safe no-ops on unsupported platforms.
package goma
