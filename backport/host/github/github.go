package github

import (
	"context"
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/build_tools/backport/host"
)

// Config holds the settings needed to create a GitHub host
// provider.
type Config struct {
	// RepoOwner is the GitHub user or organisation that owns
	// the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token with repository
	// scope.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise hostname
	// (e.g. "git.corp.example.com"). Leave empty for
	// github.com.
	EnterpriseHost string
}

// Provider fetches pull request metadata from GitHub.
//
// Pattern: Strategy -- implements host.Provider.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
}

// NewProvider validates cfg and returns a Provider ready to query
// the GitHub API.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
	}, nil
}

// CurrentUser returns the login of the token's owner.
func (p *Provider) CurrentUser(
	ctx context.Context,
) (string, error) {
	const errCtx = "fetching github user"

	user, _, err := p.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return user.GetLogin(), nil
}

// PullRequest fetches PR metadata by number.
func (p *Provider) PullRequest(
	ctx context.Context,
	number int,
) (*host.PullRequest, error) {
	const errCtx = "fetching github pull request"

	pr, _, err := p.client.PullRequests.Get(
		ctx, p.repoOwner, p.repo, number,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %d: %w", errCtx, number, err,
		)
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, la := range pr.Labels {
		labels = append(labels, la.GetName())
	}

	slog.Info(
		"fetched pull request",
		"number", number,
		"merged", pr.GetMerged(),
		"labels", len(labels),
	)

	return &host.PullRequest{
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Merged:         pr.GetMerged(),
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		Labels:         labels,
	}, nil
}
