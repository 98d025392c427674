package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/filter"
	"github.com/jinsu133/airpermit-law-alert/internal/metrics"
	"github.com/jinsu133/airpermit-law-alert/internal/pipeline"
	"github.com/jinsu133/airpermit-law-alert/internal/source"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath  = flag.String("config", "config.yml", "path to YAML config")
		outDir   = flag.String("out", "", "override output directory")
		interval = flag.Duration("interval", time.Hour, "run interval")
		once     = flag.Bool("once", false, "run a single cycle then exit")
		verbose  = flag.Bool("verbose", true, "enable verbose logging")
	)
	flag.Parse()

	log.Printf("law-alert backfiller %s starting...", Version)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *outDir != "" {
		cfg.Paths.OutDir = *outDir
	}

	creds := config.CredentialsFromEnv()
	flt := filter.New(cfg)
	client := util.NewHTTPClient(cfg.HTTP.Timeout)

	srcs := make([]source.Source, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		s, err := source.NewFromConfig(name, cfg, creds, flt, client)
		if err != nil {
			log.Fatalf("build source %q: %v", name, err)
		}
		srcs = append(srcs, s)
		log.Printf("configured source: %s", s.Name())
	}

	p := pipeline.New(cfg, creds, flt, srcs, *verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := p.Run(ctx); err != nil {
			log.Fatalf("run failed: %v", err)
		}
		return
	}

	if cfg.Metrics.Enable {
		srv := metrics.Serve(cfg.Metrics.Listen)
		go func() {
			log.Printf("metrics on %s", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	if err := p.Run(ctx); err != nil {
		log.Printf("run failed: %v", err)
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				log.Printf("run failed: %v", err)
			}
		}
	}
}
