// Package cmdutil holds helpers shared by the commands.
package cmdutil

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/dev"
	"github.com/rfratto/asyncfuse/internal/fuse/session"
)

// Config configures a mounted filesystem.
type Config struct {
	LogLevel LogLevel

	// Mount options.
	FSName             string
	Subtype            string
	ReadOnly           bool
	AllowOther         bool
	DefaultPermissions bool

	// Capabilities to request from the kernel.
	RequestedFlags fuse.InitFlags

	MaxWrite            uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	RequestTimeout      time.Duration
	DrainTimeout        time.Duration

	HTTPListenAddr string // Serves /metrics. Empty disables the HTTP server.
	GRPCListenAddr string // Address an exporter listens on.
	RemoteAddr     string // Address of an exporter to serve through.
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		LogLevel:            defaultLogLevel,
		Subtype:             "asyncfuse",
		RequestedFlags:      session.DefaultOptions.RequestedFlags,
		MaxWrite:            session.DefaultOptions.MaxWrite,
		MaxBackground:       session.DefaultOptions.MaxBackground,
		CongestionThreshold: session.DefaultOptions.CongestionThreshold,
		DrainTimeout:        session.DefaultOptions.DrainTimeout,
		HTTPListenAddr:      "tcp://127.0.0.1:13612",
		GRPCListenAddr:      "tcp://0.0.0.0:13613",
	}
}

// capabilityNames maps config names to the init flags they request.
var capabilityNames = map[string]fuse.InitFlags{
	"async_read":     fuse.InitAsyncRead,
	"posix_locks":    fuse.InitPOSIXLocks,
	"atomic_o_trunc": fuse.InitAtomicTruncate,
	"export_support": fuse.InitExportSupport,
	"big_writes":     fuse.InitBigWrites,
	"dont_mask":      fuse.InitDontMask,
	"flock_locks":    fuse.InitFlockLocks,
}

// ParseCapabilities converts capability names into init flags.
func ParseCapabilities(names []string) (fuse.InitFlags, error) {
	var flags fuse.InitFlags
	for _, name := range names {
		flag, ok := capabilityNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			valid := make([]string, 0, len(capabilityNames))
			for n := range capabilityNames {
				valid = append(valid, n)
			}
			sort.Strings(valid)
			return 0, fmt.Errorf("unknown capability %q, valid options %s", name, strings.Join(valid, ", "))
		}
		flags |= flag
	}
	return flags, nil
}

type fileConfig struct {
	LogLevel string `toml:"log_level"`

	Mount struct {
		FSName             string `toml:"fsname"`
		Subtype            string `toml:"subtype"`
		ReadOnly           bool   `toml:"read_only"`
		AllowOther         bool   `toml:"allow_other"`
		DefaultPermissions bool   `toml:"default_permissions"`
	} `toml:"mount"`

	Session struct {
		Capabilities        []string `toml:"capabilities"`
		MaxWrite            uint32   `toml:"max_write"`
		MaxBackground       uint16   `toml:"max_background"`
		CongestionThreshold uint16   `toml:"congestion_threshold"`
		RequestTimeout      string   `toml:"request_timeout"`
		DrainTimeout        string   `toml:"drain_timeout"`
	} `toml:"session"`

	HTTPListenAddr string `toml:"http_listen_addr"`
	GRPCListenAddr string `toml:"grpc_listen_addr"`
	RemoteAddr     string `toml:"remote_addr"`
}

// LoadConfig reads a TOML config file. Settings missing from the file keep
// their values from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.Set(raw.LogLevel); err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
	}

	if meta.IsDefined("mount", "fsname") {
		cfg.FSName = strings.TrimSpace(raw.Mount.FSName)
	}
	if meta.IsDefined("mount", "subtype") {
		cfg.Subtype = strings.TrimSpace(raw.Mount.Subtype)
	}
	if meta.IsDefined("mount", "read_only") {
		cfg.ReadOnly = raw.Mount.ReadOnly
	}
	if meta.IsDefined("mount", "allow_other") {
		cfg.AllowOther = raw.Mount.AllowOther
	}
	if meta.IsDefined("mount", "default_permissions") {
		cfg.DefaultPermissions = raw.Mount.DefaultPermissions
	}

	if meta.IsDefined("session", "capabilities") {
		flags, err := ParseCapabilities(raw.Session.Capabilities)
		if err != nil {
			return Config{}, fmt.Errorf("parse capabilities: %w", err)
		}
		cfg.RequestedFlags = flags
	}
	if meta.IsDefined("session", "max_write") {
		cfg.MaxWrite = raw.Session.MaxWrite
	}
	if meta.IsDefined("session", "max_background") {
		cfg.MaxBackground = raw.Session.MaxBackground
	}
	if meta.IsDefined("session", "congestion_threshold") {
		cfg.CongestionThreshold = raw.Session.CongestionThreshold
	}
	if meta.IsDefined("session", "request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Session.RequestTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if meta.IsDefined("session", "drain_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Session.DrainTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse drain_timeout: %w", err)
		}
		cfg.DrainTimeout = d
	}

	if meta.IsDefined("http_listen_addr") {
		cfg.HTTPListenAddr = strings.TrimSpace(raw.HTTPListenAddr)
	}
	if meta.IsDefined("grpc_listen_addr") {
		cfg.GRPCListenAddr = strings.TrimSpace(raw.GRPCListenAddr)
	}
	if meta.IsDefined("remote_addr") {
		cfg.RemoteAddr = strings.TrimSpace(raw.RemoteAddr)
	}

	return cfg, cfg.Validate()
}

// Validate checks c for invalid settings.
func (c Config) Validate() error {
	switch {
	case c.MaxWrite < 4096:
		return fmt.Errorf("max_write must be at least 4096")
	case c.MaxBackground == 0:
		return fmt.Errorf("max_background must be greater than 0")
	case c.CongestionThreshold > c.MaxBackground:
		return fmt.Errorf("congestion_threshold must not be greater than max_background")
	case c.RequestTimeout < 0 || c.DrainTimeout < 0:
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// MountOptions returns the mount options for c.
func (c Config) MountOptions() []dev.MountOption {
	var opts []dev.MountOption
	if c.FSName != "" {
		opts = append(opts, dev.FSName(c.FSName))
	}
	if c.Subtype != "" {
		opts = append(opts, dev.Subtype(c.Subtype))
	}
	if c.ReadOnly {
		opts = append(opts, dev.ReadOnly())
	}
	if c.AllowOther {
		opts = append(opts, dev.AllowOther())
	}
	if c.DefaultPermissions {
		opts = append(opts, dev.DefaultPermissions())
	}
	return opts
}

// SessionOptions returns session options for c. The Device and Handler must
// be set by the caller.
func (c Config) SessionOptions() session.Options {
	o := session.DefaultOptions
	o.RequestedFlags = c.RequestedFlags
	o.MaxWrite = c.MaxWrite
	o.MaxBackground = c.MaxBackground
	o.CongestionThreshold = c.CongestionThreshold
	o.RequestTimeout = c.RequestTimeout
	if c.DrainTimeout > 0 {
		o.DrainTimeout = c.DrainTimeout
	}
	return o
}
