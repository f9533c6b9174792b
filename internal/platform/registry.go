package platform

import "sort"

const (
	Codeforces    = "codeforces"
	LeetCode      = "leetcode"
	CodeChef      = "codechef"
	AtCoder       = "atcoder"
	GitHub        = "github"
	StackOverflow = "stackoverflow"
)

// Registry holds the closed set of supported platforms. Registration happens
// once at construction; there is no runtime mutation.
type Registry struct {
	adapters map[string]Adapter
}

// RegistryConfig carries the credentials some adapters accept.
type RegistryConfig struct {
	GitHubToken      string
	StackOverflowKey string
}

// NewRegistry builds the registry with every supported adapter.
func NewRegistry(cfg RegistryConfig) *Registry {
	adapters := []Adapter{
		NewCodeforcesAdapter(),
		NewLeetCodeAdapter(),
		NewCodeChefAdapter(),
		NewAtCoderAdapter(),
		NewGitHubAdapter(cfg.GitHubToken),
		NewStackOverflowAdapter(cfg.StackOverflowKey),
	}

	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Capability().ID] = a
	}
	return &Registry{adapters: m}
}

// Resolve returns the adapter for a platform id.
func (r *Registry) Resolve(platformID string) (Adapter, error) {
	a, ok := r.adapters[platformID]
	if !ok {
		return nil, Errf(KindUnsupportedPlatform, "unknown platform: %s", platformID)
	}
	return a, nil
}

// Supported reports whether a platform id is registered.
func (r *Registry) Supported(platformID string) bool {
	_, ok := r.adapters[platformID]
	return ok
}

// ListSupported returns capability descriptors, sorted by platform id so the
// output is stable.
func (r *Registry) ListSupported() []Capability {
	caps := make([]Capability, 0, len(r.adapters))
	for _, a := range r.adapters {
		caps = append(caps, a.Capability())
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].ID < caps[j].ID })
	return caps
}
