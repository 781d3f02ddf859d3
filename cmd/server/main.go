package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nickyhof/ShopQL"
	"github.com/nickyhof/ShopQL/config"
)

// Version is set at build time via -ldflags
var Version = "dev"

type serverOptions struct {
	configFile string
	kind       string
	path       string
	port       int
	httpPort   int
	tlsCert    string
	tlsKey     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &serverOptions{}

	cmd := &cobra.Command{
		Use:           "shopql-server",
		Short:         "ShopQL query server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringVar(&opts.kind, "store", "", "Record store kind (overrides config)")
	flags.StringVar(&opts.path, "path", "", "Git directory or snapshot location (overrides config)")
	flags.IntVar(&opts.port, "port", 0, "TCP port to listen on (overrides config)")
	flags.IntVar(&opts.httpPort, "http-port", 0, "HTTP API port, 0 disables (overrides config)")
	flags.StringVar(&opts.tlsCert, "tls-cert", "", "TLS certificate file")
	flags.StringVar(&opts.tlsKey, "tls-key", "", "TLS key file")

	return cmd
}

func (opts *serverOptions) load() (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if opts.kind != "" {
		cfg.Store.Kind = opts.kind
	}
	if opts.path != "" {
		cfg.Store.Path = opts.path
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.httpPort != 0 {
		cfg.Server.HTTPPort = opts.httpPort
	}
	if opts.tlsCert != "" {
		cfg.Server.TLSCert = opts.tlsCert
		cfg.Server.TLSKey = opts.tlsKey
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts *serverOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(nil)
	gin.SetMode(gin.ReleaseMode)

	instance, err := ShopQL.OpenConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}
	defer instance.Close()
	logger.Info("record store opened", "kind", cfg.Store.Kind)

	server := NewServer(instance,
		WithLogger(logger),
		WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		WithAuth(&AuthConfig{
			Enabled:   cfg.Server.JWTSecret != "",
			JWTSecret: cfg.Server.JWTSecret,
			Issuer:    cfg.Server.Issuer,
			Audience:  cfg.Server.Audience,
			Role:      cfg.Server.Role,
		}),
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if cfg.Server.TLSCert != "" {
		err = server.StartTLS(addr, cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.Start(addr)
	}
	if err != nil {
		return err
	}

	if cfg.Server.HTTPPort != 0 {
		if err := server.StartHTTP(fmt.Sprintf(":%d", cfg.Server.HTTPPort)); err != nil {
			server.Stop()
			return err
		}
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   ShopQL Query Server v%-14s  ║\n", Version)
	fmt.Println("║   Storefront admin query engine       ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d\n", cfg.Server.Port)
	if cfg.Server.HTTPPort != 0 {
		fmt.Printf("HTTP API on port %d\n", cfg.Server.HTTPPort)
	}
	fmt.Println("Send queries (one per line), 'quit' to disconnect")
	fmt.Println()

	<-ctx.Done()

	logger.Info("shutting down")
	if err := server.Stop(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
