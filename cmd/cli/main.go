package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyhof/ShopQL"
	"github.com/nickyhof/ShopQL/config"
	"github.com/nickyhof/ShopQL/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

var errQueryFailed = errors.New("query failed")

type rootOptions struct {
	configFile string
	kind       string
	url        string
	apiKey     string
	path       string
	dsn        string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "shopql",
		Short:         "ShopQL storefront admin query console",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringVar(&opts.kind, "store", "", "Record store: memory, git, rest, sqlite, duckdb, postgres, snapshot")
	flags.StringVar(&opts.url, "url", "", "REST base URL")
	flags.StringVar(&opts.apiKey, "api-key", "", "REST API key")
	flags.StringVar(&opts.path, "path", "", "Git directory or snapshot location")
	flags.StringVar(&opts.dsn, "dsn", "", "SQL database DSN")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "repl",
			Short: "Start the interactive console",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runREPL(cmd.Context(), opts)
			},
		},
		newExecCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
	)

	return rootCmd
}

// load reads the configuration and applies command-line overrides.
func (opts *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, err
	}

	overrides := []struct {
		flag  string
		value *string
	}{
		{opts.kind, &cfg.Store.Kind},
		{opts.url, &cfg.Store.URL},
		{opts.apiKey, &cfg.Store.APIKey},
		{opts.path, &cfg.Store.Path},
		{opts.dsn, &cfg.Store.DSN},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.value = o.flag
		}
	}
	return cfg, nil
}

func (opts *rootOptions) open(ctx context.Context) (*ShopQL.Instance, config.Config, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, cfg, err
	}

	instance, err := ShopQL.OpenConfig(ctx, cfg, cfg.Log.NewLogger(nil))
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}
	return instance, cfg, nil
}

func runREPL(ctx context.Context, opts *rootOptions) error {
	instance, cfg, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer instance.Close()

	printBanner(os.Stdout)
	fmt.Println(successStyle.Render("Using " + cfg.Store.Kind + " store"))

	cli := NewCLI(instance, os.Stdout)
	cli.historyFile = getHistoryPath()
	return cli.run(ctx)
}

func newExecCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [query]",
		Short: "Execute queries and exit",
		Example: `  shopql exec "SELECT status, COUNT(*) FROM orders GROUP BY status"
  shopql exec --file reports.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && len(args) == 0 {
				return fmt.Errorf("a query or --file is required")
			}

			instance, _, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer instance.Close()

			cli := NewCLI(instance, cmd.OutOrStdout())
			if file != "" {
				failed, err := cli.runFile(cmd.Context(), file)
				if err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d statement(s) failed", failed)
				}
				return nil
			}
			if err := cli.execute(cmd.Context(), strings.Join(args, " ")); err != nil {
				return errQueryFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File of ;-separated queries")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var appendMode bool

	cmd := &cobra.Command{
		Use:   "import <backup>",
		Short: "Load a backup file into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, cfg, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer instance.Close()

			s3 := cfg.S3()
			backup, err := store.ReadBackup(cmd.Context(), args[0], &s3)
			if err != nil {
				return err
			}

			load, verb := store.Import, "Imported"
			if appendMode {
				load, verb = store.Merge, "Appended"
			}
			if err := load(cmd.Context(), instance.Store, backup); err != nil {
				return err
			}

			total := 0
			for _, records := range backup.Tables {
				total += len(records)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render(
				fmt.Sprintf("✓ %s %d record(s) into %d table(s)", verb, total, len(backup.Tables))))
			if gitStore, ok := instance.Store.(*store.GitStore); ok {
				if head := gitStore.Head(); head.Id != "" {
					fmt.Fprintf(out, "  HEAD %s\n", head)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "Append to existing tables instead of replacing them")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var tables []string

	cmd := &cobra.Command{
		Use:   "export <dest>",
		Short: "Write a backup of the store to a path, file:// or s3:// URL",
		Long:  "Write a backup of the store. A destination ending in / is a directory and gets a dated file name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, cfg, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer instance.Close()

			if len(tables) == 0 {
				tables = instance.Engine().Catalog().TableNames()
			}

			s3 := cfg.S3()
			backup, dest, err := store.Export(cmd.Context(), instance.Store, tables, args[0], &s3)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
				fmt.Sprintf("✓ Exported %d table(s) to %s", len(backup.Tables), dest)))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "Tables to export (default: all)")
	return cmd
}
