package identity

import (
	"context"
	"fmt"
	"plugin"
)

// Symbols a Go plugin may export, checked in this order.
const (
	pluginSymbolResolver    = "Resolver"
	pluginSymbolGetIdentity = "GetIdentity"
)

// LoadPlugin opens a Go plugin built with -buildmode=plugin. The plugin must
// export either a Resolver variable implementing Resolver or a
// GetIdentity func(string) string.
func LoadPlugin(_ context.Context, path string) (Resolver, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin: %w", err)
	}

	if sym, err := p.Lookup(pluginSymbolResolver); err == nil {
		switch v := sym.(type) {
		case *Resolver:
			if *v != nil {
				return *v, nil
			}
		case Resolver:
			return v, nil
		}
		return nil, fmt.Errorf("%w: plugin symbol %s has type %T", ErrInvalidResolver, pluginSymbolResolver, sym)
	}

	sym, err := p.Lookup(pluginSymbolGetIdentity)
	if err != nil {
		return nil, fmt.Errorf("%w: plugin exports neither %s nor %s", ErrInvalidResolver, pluginSymbolResolver, pluginSymbolGetIdentity)
	}

	getIdentity, ok := sym.(func(string) string)
	if !ok {
		return nil, fmt.Errorf("%w: plugin symbol %s has type %T, want func(string) string", ErrInvalidResolver, pluginSymbolGetIdentity, sym)
	}

	return ResolverFunc(func(_ context.Context, filePath string) (string, error) {
		return getIdentity(filePath), nil
	}), nil
}
