package gitlab

import (
	"context"
	"fmt"
	"log/slog"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/build_tools/backport/host"
)

// Config holds the settings needed to create a GitLab host
// provider.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path (e.g. "org/project").
	Repo string
	// AccessToken is a personal or project access token.
	AccessToken string
}

// Provider fetches merge request metadata from GitLab.
//
// Pattern: Strategy -- implements host.Provider.
type Provider struct {
	client *gl.Client
	repo   string
}

// NewProvider validates cfg and returns a Provider ready to query
// the GitLab API.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	hostURL := cfg.Host
	if hostURL == "" {
		hostURL = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(hostURL),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Provider{
		client: client,
		repo:   cfg.Repo,
	}, nil
}

// CurrentUser returns the username of the token's owner.
func (p *Provider) CurrentUser(
	_ context.Context,
) (string, error) {
	const errCtx = "fetching gitlab user"

	user, _, err := p.client.Users.CurrentUser()
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return user.Username, nil
}

// PullRequest fetches merge request metadata by IID, mapped onto
// the platform-neutral PullRequest shape.
func (p *Provider) PullRequest(
	_ context.Context,
	number int,
) (*host.PullRequest, error) {
	const errCtx = "fetching gitlab merge request"

	mr, _, err := p.client.MergeRequests.GetMergeRequest(
		p.repo, int64(number), nil,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %d: %w", errCtx, number, err,
		)
	}

	merged := mr.State == "merged"

	slog.Info(
		"fetched merge request",
		"iid", number,
		"merged", merged,
		"labels", len(mr.Labels),
	)

	return &host.PullRequest{
		Number:         int(mr.IID),
		Title:          mr.Title,
		Merged:         merged,
		MergeCommitSHA: mr.MergeCommitSHA,
		Labels:         mr.Labels,
	}, nil
}
