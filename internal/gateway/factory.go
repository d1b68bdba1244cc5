package gateway

import (
	"fmt"

	"github.com/sajilopay/payment-core/internal/domain"
)

// Factory resolves a (provider, method) pair to a concrete gateway.
// Gateways are stateless across attempts, so each combination is built
// once at startup and reused; per-attempt state lives in the execution.
type Factory struct {
	catalog  *Catalog
	gateways map[catalogKey]PaymentGateway
}

// FactoryConfig carries the provider credentials the factory wires into
// its gateways.
type FactoryConfig struct {
	Fonepay FonepayConfig
	SmartQR SmartQRConfig
}

// NewFactory builds every enabled catalog combination up front, so a
// misconfigured provider fails at startup rather than mid-attempt.
func NewFactory(catalog *Catalog, cfg FactoryConfig) (*Factory, error) {
	f := &Factory{
		catalog:  catalog,
		gateways: make(map[catalogKey]PaymentGateway),
	}

	for _, d := range catalog.Entries() {
		if !d.Enabled {
			continue
		}
		gw, err := buildGateway(d, cfg)
		if err != nil {
			return nil, fmt.Errorf("building gateway %s: %w", d.ID, err)
		}
		f.gateways[catalogKey{provider: d.Provider, method: d.Method}] = gw
	}
	return f, nil
}

func buildGateway(d Descriptor, cfg FactoryConfig) (PaymentGateway, error) {
	switch d.Provider {
	case domain.ProviderFonepay:
		if d.Method != domain.MethodCard {
			return nil, &domain.UnsupportedCombinationError{Provider: d.Provider, Method: d.Method}
		}
		return NewFonepayGateway(cfg.Fonepay)
	case domain.ProviderSmartQR:
		if d.Method != domain.MethodCard && d.Method != domain.MethodWallet {
			return nil, &domain.UnsupportedCombinationError{Provider: d.Provider, Method: d.Method}
		}
		return NewSmartQRGateway(cfg.SmartQR, d.Method)
	default:
		return nil, &domain.UnsupportedCombinationError{Provider: d.Provider, Method: d.Method}
	}
}

// Resolve returns the gateway for a (provider, method) pair. Misses and
// disabled combinations fail with UnsupportedCombinationError; a
// partially-configured gateway is never returned.
func (f *Factory) Resolve(p domain.Provider, m domain.Method) (PaymentGateway, error) {
	d, ok := f.catalog.Lookup(p, m)
	if !ok || !d.Enabled {
		return nil, &domain.UnsupportedCombinationError{Provider: p, Method: m}
	}

	gw, ok := f.gateways[catalogKey{provider: p, method: m}]
	if !ok {
		return nil, &domain.UnsupportedCombinationError{Provider: p, Method: m}
	}
	return gw, nil
}

// Catalog returns the factory's immutable catalog.
func (f *Factory) Catalog() *Catalog {
	return f.catalog
}
