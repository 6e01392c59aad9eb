package registry

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/provider/github"
	"github.com/drewdunne/prbounty/internal/provider/gitlab"
)

// ErrUnsupportedHost is returned when no provider serves a host.
var ErrUnsupportedHost = errors.New("unsupported platform host")

// Factory builds a source authenticated with token.
type Factory func(token string) (provider.Source, error)

type entry struct {
	factory      Factory
	serviceToken string
}

// Registry resolves platform sources by web host. Sources built with the
// service token are cached; per-request tokens get a fresh source.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	cached  map[string]provider.Source
}

// New creates a new provider registry from config.
func New(cfg *config.Config) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
		cached:  make(map[string]provider.Source),
	}

	agg := cfg.Aggregator

	gh := cfg.Providers.GitHub
	ghFactory := func(token string) (provider.Source, error) {
		opts := []github.Option{github.WithOptionalRetries(agg.OptionalRetries, agg.RetryWait)}
		if gh.BaseURL != "" {
			opts = append(opts, github.WithBaseURL(gh.BaseURL))
		}
		return github.New(token, opts...), nil
	}
	r.Register(coalesce(gh.Host, "github.com"), gh.Token, ghFactory)

	gl := cfg.Providers.GitLab
	glFactory := func(token string) (provider.Source, error) {
		opts := []gitlab.Option{gitlab.WithOptionalRetries(agg.OptionalRetries, agg.RetryWait)}
		if gl.BaseURL != "" {
			opts = append(opts, gitlab.WithBaseURL(gl.BaseURL))
		}
		return gitlab.New(token, opts...)
	}
	r.Register(coalesce(gl.Host, "gitlab.com"), gl.Token, glFactory)

	return r
}

// Register adds or replaces the factory serving host.
func (r *Registry) Register(host, serviceToken string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	host = strings.ToLower(host)
	r.entries[host] = entry{factory: f, serviceToken: serviceToken}
	delete(r.cached, host)
}

// Get returns a source for host. An empty token falls back to the
// configured service token.
func (r *Registry) Get(host, token string) (provider.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	host = strings.ToLower(host)
	e, ok := r.entries[host]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHost, host)
	}

	if token != "" && token != e.serviceToken {
		return e.factory(token)
	}

	if src, ok := r.cached[host]; ok {
		return src, nil
	}
	src, err := e.factory(e.serviceToken)
	if err != nil {
		return nil, err
	}
	r.cached[host] = src
	return src, nil
}

// ForURL returns a source for the host of a pull request URL.
func (r *Registry) ForURL(rawURL, token string) (provider.Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHost, rawURL)
	}
	return r.Get(u.Hostname(), token)
}

// List returns all registered hosts in sorted order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	hosts := make([]string, 0, len(r.entries))
	for host := range r.entries {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
