package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/fidobridge/ctaphid/config"
	"github.com/fidobridge/ctaphid/ctaphid"
	"github.com/fidobridge/ctaphid/internal/apdu"
	"github.com/fidobridge/ctaphid/internal/cbor"
	"github.com/fidobridge/ctaphid/internal/hidtransport"
)

func main() {
	var configFile = pflag.StringP("config-file", "c", "", "YAML config file. Empty uses built-in defaults.")
	var transportKind = pflag.StringP("transport", "t", "loopback", "Transport: loopback or pty.")
	var verbose = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ctaphid-demo - drives a ctaphid.Engine against a test transport.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ctaphid-demo [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	log := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           charmlog.InfoLevel,
		ReportTimestamp: true,
		Prefix:          "ctaphid-demo",
	})
	if *verbose {
		log.SetLevel(charmlog.DebugLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("load config", "err", err)
	}

	var transport ctaphid.Transport
	switch *transportKind {
	case "loopback":
		transport = hidtransport.NewLoopback(4)
	case "pty":
		pty, err := hidtransport.OpenPTY()
		if err != nil {
			log.Fatal("open pty", "err", err)
		}
		defer pty.Close()
		log.Info("pty ready", "slave", pty.SlavePath())
		transport = pty
	default:
		log.Fatal("unknown transport", "transport", *transportKind)
	}

	backends := ctaphid.Backends{
		APDU: apdu.NewBackend(cfg.U2FVersion).Handle,
		Wink: func(ctx context.Context, durationMS uint16) error {
			log.Info("wink", "duration_ms", durationMS)
			return nil
		},
	}
	if cfg.EnableCBOR {
		backends.CBOR = cbor.NewBackend(nil).Handle
	}

	opts := cfg.Options()
	opts.Logger = log

	engine, err := ctaphid.New(opts, transport, backends)
	if err != nil {
		log.Fatal("construct engine", "err", err)
	}
	if err := engine.Configure(); err != nil {
		log.Fatal("configure engine", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(cfg.PeriodicTick())
	defer ticker.Stop()

	log.Info("engine running", "max_channels", cfg.MaxChannels, "transport", *transportKind)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			engine.PeriodicTick()
		default:
			if err := engine.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("run once", "err", err)
			}
		}
	}
}
