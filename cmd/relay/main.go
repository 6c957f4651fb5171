package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/bancho-relay/internal/banchoirc"
	"github.com/you/bancho-relay/internal/beatmap"
	"github.com/you/bancho-relay/internal/config"
	"github.com/you/bancho-relay/internal/discord"
	"github.com/you/bancho-relay/internal/httpapi"
	"github.com/you/bancho-relay/internal/osuapi"
	"github.com/you/bancho-relay/internal/relay"
	"github.com/you/bancho-relay/internal/session"
	"github.com/you/bancho-relay/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag bool
		configPath  string
		httpAddr    string
		banchoAddr  string
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&configPath, "config", "", "Path to YAML config file (default: $RELAY_CONFIG)")
	flag.StringVar(&httpAddr, "http-addr", "", "Status/stream listener address (overrides config)")
	flag.StringVar(&banchoAddr, "bancho-addr", "", "Bancho IRC endpoint (overrides config)")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"relay version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("relay: config: %v", err)
	}
	if overrides["http-addr"] {
		cfg.HTTP.Addr = strings.TrimSpace(httpAddr)
	}
	if overrides["bancho-addr"] {
		cfg.Bancho.Addr = strings.TrimSpace(banchoAddr)
	}

	log.Printf("%s", cfg.SummaryJSON())

	password := cfg.Bancho.Password.Value()
	if file := strings.TrimSpace(cfg.Bancho.PasswordFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("relay: bancho password file: %v", err)
		}
		password = strings.TrimSpace(string(data))
	}
	if password == "" {
		log.Fatal("relay: bancho password is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("relay: received %s, shutting down", sig)
		cancel()
	}()

	registry := prometheus.NewRegistry()
	metrics := relay.NewMetrics(registry)

	osuClient := osuapi.NewClient(cfg.Osu.BaseURL, cfg.Osu.APIKey.Value(), nil)
	users := osuapi.NewUserFetcher(osuClient, slog.Default())
	resolver := beatmap.NewResolver(osuClient, users)
	webhook := discord.NewWebhook()

	sess := session.New(cfg.Bancho.PasswordFile, password)

	var api *httpapi.Server
	if cfg.HTTP.Addr != "" {
		build := httpapi.BuildInfo{Version: version.Version, Revision: version.Commit}
		if version.BuildTime != "" && version.BuildTime != "unknown" {
			if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
				build.BuiltAt = t
			}
		}
		api = httpapi.New(httpapi.Options{
			Addr:            cfg.HTTP.Addr,
			CORSOrigins:     cfg.HTTP.CORSOrigins,
			RateLimitRPS:    cfg.HTTP.RateRPS,
			RateLimitBurst:  cfg.HTTP.RateBurst,
			EnableMetrics:   cfg.HTTP.Metrics,
			EnableAccessLog: cfg.HTTP.AccessLog,
			EnablePprof:     cfg.HTTP.Pprof,
			Build:           build,
			ConfigSnapshot:  cfg.Redacted(),
			Registry:        registry,
			Reloader:        sess,
		})
		go func() {
			if err := api.Start(); err != nil {
				log.Fatalf("relay: http api: %v", err)
			}
		}()
		log.Printf("relay: http api ready on %s", cfg.HTTP.Addr)
	}

	relayOpts := []relay.Option{relay.WithMetrics(metrics)}
	if api != nil {
		relayOpts = append(relayOpts, relay.WithPublisher(api))
	}
	rel := relay.New(users, resolver, webhook, cfg.WebhookFor, relayOpts...)

	client := banchoirc.New(banchoirc.Config{
		Username:         cfg.Bancho.Username,
		PasswordProvider: sess.Password,
		Channels:         cfg.Channels,
		AllowPM:          cfg.EnablePM,
		Addr:             cfg.Bancho.Addr,
	}, rel.Handle)
	sess.SetConn(client)

	if file := strings.TrimSpace(cfg.Bancho.PasswordFile); file != "" {
		if err := sess.WatchCredentialFiles(file); err != nil {
			slog.Error("relay: watch credential files", "err", err)
		}
	}

	go func() {
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("relay: bancho client exited: %v", err)
			cancel()
		}
	}()
	log.Printf("relay: bancho client started for %d channels (pm=%t)", len(cfg.Channels), cfg.EnablePM)

	<-ctx.Done()

	if api != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("relay: http api shutdown: %v", err)
		}
		cancelShutdown()
	}

	// give in-flight event pipelines a moment to finish
	done := make(chan struct{})
	go func() {
		rel.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		log.Printf("relay: abandoning in-flight events after timeout")
	}
	log.Printf("relay: shutdown complete")
}
