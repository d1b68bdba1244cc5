package gateway

import "github.com/sajilopay/payment-core/internal/domain"

// Descriptor is one static catalog entry: a (provider, method)
// combination offered to callers. The catalog is populated once at
// startup and read-only thereafter.
type Descriptor struct {
	ID          string          `json:"id"`
	Provider    domain.Provider `json:"provider"`
	Method      domain.Method   `json:"method"`
	DisplayName string          `json:"display_name"`
	Enabled     bool            `json:"enabled"`
}

type catalogKey struct {
	provider domain.Provider
	method   domain.Method
}

// Catalog is the immutable set of gateway descriptors.
type Catalog struct {
	entries []Descriptor
	index   map[catalogKey]Descriptor
}

// NewCatalog builds a catalog from its entries. Later duplicates of the
// same (provider, method) pair are ignored.
func NewCatalog(entries []Descriptor) *Catalog {
	c := &Catalog{
		entries: make([]Descriptor, len(entries)),
		index:   make(map[catalogKey]Descriptor, len(entries)),
	}
	copy(c.entries, entries)
	for _, e := range entries {
		key := catalogKey{provider: e.Provider, method: e.Method}
		if _, dup := c.index[key]; !dup {
			c.index[key] = e
		}
	}
	return c
}

// DefaultCatalog returns the combinations this deployment ships with.
// Each provider's entries carry the enabled flag from its config, so a
// disabled provider stays listable but unresolvable and never has its
// credentials validated at startup.
func DefaultCatalog(fonepayEnabled, smartqrEnabled bool) *Catalog {
	return NewCatalog([]Descriptor{
		{ID: "fonepay-card", Provider: domain.ProviderFonepay, Method: domain.MethodCard, DisplayName: "Fonepay", Enabled: fonepayEnabled},
		{ID: "smartqr-card", Provider: domain.ProviderSmartQR, Method: domain.MethodCard, DisplayName: "SmartQR Card", Enabled: smartqrEnabled},
		{ID: "smartqr-wallet", Provider: domain.ProviderSmartQR, Method: domain.MethodWallet, DisplayName: "SmartQR Wallet", Enabled: smartqrEnabled},
	})
}

// Lookup returns the descriptor for a (provider, method) pair.
func (c *Catalog) Lookup(p domain.Provider, m domain.Method) (Descriptor, bool) {
	d, ok := c.index[catalogKey{provider: p, method: m}]
	return d, ok
}

// Entries returns a copy of all descriptors, for the picker boundary.
func (c *Catalog) Entries() []Descriptor {
	out := make([]Descriptor, len(c.entries))
	copy(out, c.entries)
	return out
}
