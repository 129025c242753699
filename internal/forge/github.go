package forge

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/sergeknystautas/arachne/internal/model"
)

const (
	maxForksPerFetch = 20
	userAgent        = "arachne"
)

// GitHubFetcher is the default Fetcher: it lists forks of a repository and
// their tip commits, rate-limited client-side so a periodic ForgeTick never
// bursts past GitHub's budget.
type GitHubFetcher struct {
	client  *github.Client
	limiter *rate.Limiter
}

// NewGitHubFetcher builds a fetcher. token may be empty for unauthenticated
// (public-repo-only, tightly rate-limited) access; the token is passed
// through opaquely and never logged.
func NewGitHubFetcher(token string) *GitHubFetcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Fetch implements Fetcher.
func (f *GitHubFetcher) Fetch(ctx context.Context, repo RepoInfo) (*ForgeNetwork, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, model.WrapError(model.ErrForgeNetwork, err, "rate limiter wait")
	}

	forks, resp, err := f.client.Repositories.ListForks(ctx, repo.Owner, repo.Repo, &github.RepositoryListForksOptions{
		Sort:        "stargazers",
		ListOptions: github.ListOptions{PerPage: maxForksPerFetch},
	})
	if err != nil {
		return nil, classifyError(err, resp)
	}

	net := &ForgeNetwork{}
	for _, fork := range forks {
		if !fork.GetFork() {
			continue
		}
		owner := fork.GetOwner().GetLogin()
		name := fork.GetName()
		branchName := fork.GetDefaultBranch()
		if branchName == "" {
			branchName = "main"
		}

		if err := f.limiter.Wait(ctx); err != nil {
			break
		}
		branch, bresp, berr := f.client.Repositories.GetBranch(ctx, owner, name, branchName, false)
		if berr != nil {
			if _, rateErr := berr.(*github.RateLimitError); rateErr {
				return net, classifyError(berr, bresp)
			}
			continue // one bad fork shouldn't fail the whole fetch
		}

		tipSHA := branch.GetCommit().GetSHA()
		net.Branches = append(net.Branches, NetworkBranch{
			Name: owner + "/" + name + ":" + branchName,
			Tip:  tipSHA,
			Kind: model.BranchFork,
		})

		commit := branch.GetCommit().GetCommit()
		net.Commits = append(net.Commits, commitFromGitHub(tipSHA, commit))
	}

	return net, nil
}

// commitFromGitHub builds a NetworkCommit from a branch tip's git commit
// object. Forks fetched via GetBranch only surface the tip commit, not its
// parent chain, so the resulting NetworkCommit has no parents — a dangling
// reference from the Dag's perspective.
func commitFromGitHub(sha string, c *github.Commit) NetworkCommit {
	author := ""
	var when int64
	if ga := c.GetAuthor(); ga != nil {
		author = ga.GetName()
		when = ga.GetDate().Unix()
	}
	return NetworkCommit{
		Oid:     sha,
		Parents: nil,
		Author:  author,
		Time:    when,
		Summary: c.GetMessage(),
	}
}

// classifyError maps a go-github error into Arachne's ErrorKind taxonomy.
func classifyError(err error, resp *github.Response) error {
	if rle, ok := err.(*github.RateLimitError); ok {
		reset := rle.Rate.Reset.Time
		retryAfter := int(time.Until(reset).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return model.WrapErrorRetryAfter(model.ErrForgeRate, err, "forge rate limited, retry-after="+strconv.Itoa(retryAfter)+"s", reset)
	}
	if _, ok := err.(*github.AbuseRateLimitError); ok {
		return model.WrapErrorRetryAfter(model.ErrForgeRate, err, "forge secondary rate limit", time.Now().Add(time.Minute))
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return model.WrapError(model.ErrForgeAuth, err, "forge authentication failed")
		case http.StatusNotFound:
			return model.WrapError(model.ErrForgeNetwork, err, "forge repository not found")
		}
	}
	return model.WrapError(model.ErrForgeNetwork, err, "forge request failed")
}
