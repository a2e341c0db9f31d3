package platform

import (
	"fmt"
	"sync"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/proxy"
	"github.com/nuco-0416/ecauto-sub000/internal/ratelimit"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// Deps bundles what every concrete adapter constructor needs: the account
// book for credential/proxy resolution, the canonical store for token
// persistence and platform-metadata sidecar rows, a proxy resolver, and a
// rate limiter for the platform's own write-endpoint quota.
type Deps struct {
	Book    *config.AccountBook
	Store   *store.Store
	Proxy   proxy.Resolver
	Limiter *ratelimit.Limiter
}

// Factory constructs one Adapter instance scoped to accountID.
type Factory func(accountID string, deps Deps) (Adapter, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register installs a Factory under platform. Adapter packages call this
// from an init() so importing internal/platform/base or
// internal/platform/ebay for side effects is enough to make the platform
// available.
func Register(platform string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[platform] = f
}

// New resolves and constructs the adapter registered for platform.
func New(platform, accountID string, deps Deps) (Adapter, error) {
	registryMu.Lock()
	f, ok := registry[platform]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("platform: no adapter registered for %q", platform)
	}
	return f(accountID, deps)
}

// Registered lists every platform key with a registered Factory, in no
// particular order.
func Registered() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
