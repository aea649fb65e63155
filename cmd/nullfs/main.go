// Command nullfs serves a read-only in-memory filesystem. The filesystem is
// either mounted locally or served through a remote fuseexport process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rfratto/asyncfuse/internal/cmdutil"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/dev"
	"github.com/rfratto/asyncfuse/internal/fuse/grpcdev"
	"github.com/rfratto/asyncfuse/internal/fuse/session"
	"github.com/rfratto/asyncfuse/internal/nullfs"
	"google.golang.org/grpc"
)

// fileFlag collects path=contents pairs.
type fileFlag map[string]string

func (f fileFlag) String() string { return fmt.Sprintf("%d files", len(f)) }

func (f fileFlag) Set(in string) error {
	parts := strings.SplitN(in, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return fmt.Errorf("expected path=contents, got %q", in)
	}
	f[parts[0]] = parts[1]
	return nil
}

func main() {
	var (
		ll         cmdutil.LogLevel
		configFile string
		remoteAddr string
		logReqs    bool
		files      = fileFlag{}
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Var(&ll, "log.level", "Level to display logs at")
	fs.StringVar(&configFile, "config.file", "", "TOML file to load settings from")
	fs.StringVar(&remoteAddr, "connect", "", "address of a fuseexport process to serve through instead of mounting locally")
	fs.BoolVar(&logReqs, "log.requests", false, "log every request at debug level")
	fs.Var(files, "file", "file to serve, as path=contents. May be given multiple times")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s\n", err.Error())
		os.Exit(1)
	}

	cfg := cmdutil.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = cmdutil.LoadConfig(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
	}
	// Flags take precedence over the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log.level":
			cfg.LogLevel = ll
		case "connect":
			cfg.RemoteAddr = remoteAddr
		}
	})

	if cfg.RemoteAddr == "" && fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <mountpoint>\n", os.Args[0])
		os.Exit(1)
	}
	if len(files) == 0 {
		files["hello"] = "Hello, world!\n"
	}

	l := cmdutil.NewLogger(os.Stdout, cfg.LogLevel, "nullfs")

	if err := serve(l, cfg, fs.Arg(0), files, logReqs); err != nil {
		level.Error(l).Log("msg", "error during run", "err", err)
		os.Exit(1)
	}
}

func serve(l log.Logger, cfg cmdutil.Config, mountPath string, files map[string]string, logReqs bool) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	handler, err := nullfs.New(log.With(l, "component", "nullfs"), files)
	if err != nil {
		return fmt.Errorf("creating filesystem: %w", err)
	}

	device, err := openDevice(l, cfg, mountPath)
	if err != nil {
		return err
	}

	o := cfg.SessionOptions()
	o.Device = device
	o.Handler = handler
	o.Registerer = reg
	if logReqs {
		o.Middleware = append(o.Middleware, session.NewLoggingMiddleware(l))
	}

	sess, err := session.New(l, o)
	if err != nil {
		_ = device.Close()
		return fmt.Errorf("creating session: %w", err)
	}

	var group run.Group

	// Session worker
	{
		ctx, cancel := context.WithCancel(context.Background())

		group.Add(func() error {
			level.Info(l).Log("msg", "serving filesystem", "session", sess.ID())
			return sess.Serve(ctx)
		}, func(_ error) {
			cancel()
		})
	}

	// Information server worker
	if cfg.HTTPListenAddr != "" {
		lis, err := cmdutil.Listen(cfg.HTTPListenAddr)
		if err != nil {
			_ = sess.Close()
			return fmt.Errorf("failed to create listener for HTTP server: %w", err)
		}
		cmdutil.AddHTTPServer(&group, l, lis, reg)
	}

	cmdutil.AddSignalHandler(&group, l)
	return group.Run()
}

// openDevice mounts mountPath or, when cfg.RemoteAddr is set, connects to a
// remote exporter.
func openDevice(l log.Logger, cfg cmdutil.Config, mountPath string) (fuse.Device, error) {
	if cfg.RemoteAddr == "" {
		if err := os.MkdirAll(mountPath, 0770); err != nil {
			return nil, fmt.Errorf("creating mount path: %w", err)
		}
		device, err := dev.Mount(l, mountPath, cfg.MountOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create mount: %w", err)
		}
		return device, nil
	}

	target, err := cmdutil.DialTarget(cfg.RemoteAddr)
	if err != nil {
		return nil, err
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer dialCancel()

	cc, err := grpc.DialContext(dialCtx, target, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.RemoteAddr, err)
	}
	device, err := grpcdev.Connect(context.Background(), cc)
	if err != nil {
		_ = cc.Close()
		return nil, err
	}
	level.Info(l).Log("msg", "connected to remote exporter", "addr", cfg.RemoteAddr)
	return &remoteDevice{Device: device, cc: cc}, nil
}

// remoteDevice closes the client connection along with the device.
type remoteDevice struct {
	*grpcdev.Device
	cc *grpc.ClientConn
}

func (d *remoteDevice) Close() error {
	err := d.Device.Close()
	_ = d.cc.Close()
	return err
}
