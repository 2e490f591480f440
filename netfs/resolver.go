package netfs

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Resolver maps a host name to a numeric address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (netip.Addr, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, host string) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	return f(ctx, host)
}

// StaticResolver answers from a fixed table only.
type StaticResolver map[string]netip.Addr

func (r StaticResolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	addr, ok := r[host]
	if !ok {
		return netip.Addr{}, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addr, nil
}

// NetResolver resolves dotted-quad literals directly, then a static
// hosts table, then the system resolver for IPv4 records.
// Successful lookups are kept in a bounded LRU.
type NetResolver struct {
	resolver *net.Resolver
	hosts    map[string]netip.Addr
	cache    *lru.Cache[string, netip.Addr]
}

var _ Resolver = &NetResolver{}

// DefaultCacheSize bounds the lookup cache unless overridden.
const DefaultCacheSize = 256

type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	resolver  *net.Resolver
	hosts     map[string]netip.Addr
	cacheSize int
}

// WithHosts adds fixed host entries that take precedence over DNS.
func WithHosts(hosts map[string]netip.Addr) ResolverOption {
	return func(o *resolverOptions) {
		for name, addr := range hosts {
			o.hosts[name] = addr
		}
	}
}

// WithCacheSize sets the number of cached lookups; 0 disables caching.
func WithCacheSize(n int) ResolverOption {
	return func(o *resolverOptions) {
		o.cacheSize = n
	}
}

// WithNetResolver replaces net.DefaultResolver.
func WithNetResolver(r *net.Resolver) ResolverOption {
	return func(o *resolverOptions) {
		o.resolver = r
	}
}

func NewNetResolver(opts ...ResolverOption) (*NetResolver, error) {
	o := resolverOptions{
		resolver:  net.DefaultResolver,
		hosts:     make(map[string]netip.Addr),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	r := &NetResolver{resolver: o.resolver, hosts: o.hosts}
	if o.cacheSize > 0 {
		cache, err := lru.New[string, netip.Addr](o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("resolver cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

func (r *NetResolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if !addr.Unmap().Is4() {
			return netip.Addr{}, errNoIPv4
		}
		return addr.Unmap(), nil
	}
	if addr, ok := r.hosts[host]; ok {
		return addr, nil
	}
	if r.cache != nil {
		if addr, ok := r.cache.Get(host); ok {
			return addr, nil
		}
	}

	addrs, err := r.resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, addr := range addrs {
		if addr = addr.Unmap(); addr.Is4() {
			if r.cache != nil {
				r.cache.Add(host, addr)
			}
			return addr, nil
		}
	}
	return netip.Addr{}, errNoIPv4
}

// Cached reports whether host currently sits in the lookup cache.
func (r *NetResolver) Cached(host string) bool {
	return r.cache != nil && r.cache.Contains(host)
}
