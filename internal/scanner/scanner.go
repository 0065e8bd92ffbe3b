package scanner

import (
	"context"
	"fmt"
	"sort"

	"NewsAgent/internal/domain"
)

// Category describes a concrete feed endpoint provided by config.
type Category struct {
	Name string
	URL  string
}

// Request carries everything a strategy needs to plan its targets.
type Request struct {
	SiteName   string
	Categories []Category
	Options    map[string]string

	// Per-call overrides coming from refresh requests; empty means "use config".
	HNTerms     []string
	HNMinPoints *int
}

// Target is a single endpoint a strategy fetches.
type Target struct {
	Name string
	URL  string

	// MinScore drops ranked hits below the floor; unused by feed strategies.
	MinScore int
}

// String is what progress events print for a target.
func (t Target) String() string {
	return t.URL
}

// Scanner captures a single fetch strategy (rss, arxiv, hn).
type Scanner interface {
	Name() string
	Targets(req Request) []Target
	Fetch(ctx context.Context, target Target, report domain.ProgressSink) ([]domain.Entry, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry preloaded with the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
