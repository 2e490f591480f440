package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/frobnitzem/go-vfs"
	"github.com/frobnitzem/go-vfs/devfs"
	"github.com/frobnitzem/go-vfs/hostfs"
	"github.com/frobnitzem/go-vfs/memfs"
	"github.com/frobnitzem/go-vfs/netfs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %w", ErrConfigInvalid, err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	if c.Output != "" {
		zc.OutputPaths = []string{c.Output}
	}
	return zc.Build()
}

func (c NetConfig) hosts() (map[string]netip.Addr, error) {
	hosts := make(map[string]netip.Addr, len(c.Hosts))
	for name, s := range c.Hosts {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: host %s: %w", ErrConfigInvalid, name, err)
		}
		hosts[name] = addr
	}
	return hosts, nil
}

// NewNet builds the network filesystem driver.
func NewNet(c NetConfig, log *zap.Logger) (*netfs.Driver, error) {
	hosts, err := c.hosts()
	if err != nil {
		return nil, err
	}
	resolver, err := netfs.NewNetResolver(
		netfs.WithHosts(hosts),
		netfs.WithCacheSize(c.CacheSize),
	)
	if err != nil {
		return nil, err
	}
	transport := netfs.NewTCPTransport(
		time.Duration(c.DialTimeout),
		time.Duration(c.KeepAlive),
		rate.Limit(c.DialRate),
		c.DialBurst,
	)
	return netfs.New(resolver, transport,
		netfs.WithName(c.Name), netfs.WithLogger(log)), nil
}

// Build assembles a namespace with every configured mount.
// Driver calls are logged through vfs.NewLogger.
func Build(cfg Config, log *zap.Logger) (*vfs.Namespace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sugar := log.Sugar()
	ns := vfs.NewNamespace(vfs.WithDriverWrapper(func(d vfs.Driver) vfs.Driver {
		return vfs.NewLogger(sugar, d)
	}))

	net, err := NewNet(cfg.Net, log)
	if err != nil {
		return nil, err
	}
	mounts := []*vfs.FileSystem{
		net.FileSystem(),
		memfs.New(memfs.WithName(cfg.Mem.Name), memfs.WithLogger(log)).FileSystem(),
		devfs.New(devfs.WithName(cfg.Dev.Name), devfs.WithLogger(log)).FileSystem(),
	}
	if cfg.Host.Root != "" {
		host, err := hostfs.New(cfg.Host.Root, hostfs.WithName(cfg.Host.Name), hostfs.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("host mount: %w", err)
		}
		mounts = append(mounts, host.FileSystem())
	}

	for _, fs := range mounts {
		if err := ns.Mount(fs); err != nil {
			return nil, err
		}
		log.Debug("mounted", zap.String("name", fs.Name()))
	}
	return ns, nil
}
