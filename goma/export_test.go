package goma

import (
	"context"
	"time"
)

// Exported aliases for testing internal behavior from the
// goma_test package.

// InstallForTest exposes install to drive the download path with a
// chosen expected checksum.
func (c *Client) InstallForTest(
	ctx context.Context,
	expected string,
) error {
	return c.install(ctx, expected)
}

// LoginFreshForTest exposes loginFresh.
func (c *Client) LoginFreshForTest(now time.Time) bool {
	return c.loginFresh(now)
}

// RecordLoginForTest exposes recordLogin.
func (c *Client) RecordLoginForTest(now time.Time) error {
	return c.recordLogin(now)
}
