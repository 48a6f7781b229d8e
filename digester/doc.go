// Package digester computes SHA256 digests of downloaded archives
// and manages the recorded-checksum file that marks the last
// successfully installed archive, enabling skip-if-unchanged
// provisioning.
package digester
