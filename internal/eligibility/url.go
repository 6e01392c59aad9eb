package eligibility

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Platform identifies the URL layout a pull request was found in.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// Target is a parsed pull request URL. For GitLab, Owner holds the full
// namespace path.
type Target struct {
	Platform Platform
	Host     string
	Owner    string
	Repo     string
	Number   int
}

// RepoIdentifier returns host/owner/repo in lower case.
func (t Target) RepoIdentifier() string {
	return strings.ToLower(t.Host + "/" + t.Owner + "/" + t.Repo)
}

// ParsePullRequestURL parses GitHub (/owner/repo/pull/N) and GitLab
// (/group/.../repo/-/merge_requests/N) pull request URLs on any host.
func ParsePullRequestURL(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidPullRequestURL, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidPullRequestURL, raw)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	host := strings.ToLower(u.Hostname())

	// GitLab: namespace.../repo/-/merge_requests/N[/...]
	for i := 0; i+2 < len(segs); i++ {
		if segs[i] == "-" && segs[i+1] == "merge_requests" {
			if i < 2 {
				break
			}
			n, err := parseNumber(segs[i+2])
			if err != nil {
				return Target{}, fmt.Errorf("%w: %q", ErrInvalidPullRequestURL, raw)
			}
			return Target{
				Platform: PlatformGitLab,
				Host:     host,
				Owner:    strings.Join(segs[:i-1], "/"),
				Repo:     segs[i-1],
				Number:   n,
			}, nil
		}
	}

	// GitHub: owner/repo/pull/N[/files|/commits...]
	if len(segs) >= 4 && segs[2] == "pull" && segs[0] != "" && segs[1] != "" {
		n, err := parseNumber(segs[3])
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidPullRequestURL, raw)
		}
		return Target{
			Platform: PlatformGitHub,
			Host:     host,
			Owner:    segs[0],
			Repo:     segs[1],
			Number:   n,
		}, nil
	}

	return Target{}, fmt.Errorf("%w: %q", ErrInvalidPullRequestURL, raw)
}

func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}
