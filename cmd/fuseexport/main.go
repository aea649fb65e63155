// Command fuseexport mounts a directory and exports its FUSE connection over
// gRPC. A single remote process, such as nullfs -connect, serves the
// filesystem.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rfratto/asyncfuse/internal/cmdutil"
	"github.com/rfratto/asyncfuse/internal/fuse/dev"
	"github.com/rfratto/asyncfuse/internal/fuse/grpcdev"
	"google.golang.org/grpc"
)

func main() {
	var (
		ll         cmdutil.LogLevel
		configFile string
		listenAddr string
		mountOpts  []dev.MountOption
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Var(&ll, "log.level", "Level to display logs at")
	fs.StringVar(&configFile, "config.file", "", "TOML file to load settings from")
	fs.StringVar(&listenAddr, "listen.addr", "", "address to listen for gRPC traffic on")
	fs.Func("o", "extra mount option, e.g. allow_other. May be given multiple times", func(s string) error {
		opt, err := dev.ParseMountOption(s)
		if err != nil {
			return err
		}
		mountOpts = append(mountOpts, opt)
		return nil
	})

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s\n", err.Error())
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <mountpoint>\n", os.Args[0])
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
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log.level":
			cfg.LogLevel = ll
		case "listen.addr":
			cfg.GRPCListenAddr = listenAddr
		}
	})

	l := cmdutil.NewLogger(os.Stdout, cfg.LogLevel, "fuseexport")

	if err := runExport(l, cfg, fs.Arg(0), mountOpts); err != nil {
		level.Error(l).Log("msg", "error during run", "err", err)
		os.Exit(1)
	}
}

func runExport(l log.Logger, cfg cmdutil.Config, mountPath string, extra []dev.MountOption) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	mountPath, err := cmdutil.ExpandPath(mountPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(mountPath, 0770); err != nil {
		return fmt.Errorf("creating mount path: %w", err)
	}

	lis, err := cmdutil.Listen(cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("failed to create network listener: %w", err)
	}

	device, err := dev.Mount(l, mountPath, append(cfg.MountOptions(), extra...)...)
	if err != nil {
		_ = lis.Close()
		return fmt.Errorf("failed to create mount: %w", err)
	}
	exporter := grpcdev.NewExporter(l, device, cfg.MaxWrite)

	var group run.Group

	// gRPC worker
	{
		srv := grpc.NewServer()
		grpcdev.RegisterDeviceServer(srv, exporter)

		group.Add(func() error {
			level.Info(l).Log("msg", "waiting for client", "addr", lis.Addr(), "dir", mountPath)
			return srv.Serve(lis)
		}, func(_ error) {
			_ = exporter.Close()
			srv.Stop()
		})
	}

	// Exit once the exported client goes away.
	{
		ctx, cancel := context.WithCancel(context.Background())

		group.Add(func() error {
			select {
			case <-exporter.Done():
				level.Info(l).Log("msg", "export finished")
			case <-ctx.Done():
			}
			return nil
		}, func(_ error) {
			cancel()
		})
	}

	if cfg.HTTPListenAddr != "" {
		httpLis, err := cmdutil.Listen(cfg.HTTPListenAddr)
		if err != nil {
			_ = exporter.Close()
			_ = lis.Close()
			return fmt.Errorf("failed to create listener for HTTP server: %w", err)
		}
		cmdutil.AddHTTPServer(&group, l, httpLis, reg)
	}

	cmdutil.AddSignalHandler(&group, l)
	return group.Run()
}
