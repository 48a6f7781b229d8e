// Package fetch downloads archives over HTTP to local files. URLs
// are built from a fixed {base}/{checksum}/{filename} template so
// every published archive lives under its own content hash. The
// download path writes to a temporary file and renames into place
// only on success, so a partially written file never masquerades as
// a complete download.
package fetch
