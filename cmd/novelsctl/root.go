package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	novels "github.com/zxckotee/novels-sub001"
)

type rootFlags struct {
	debug      bool
	apiURL     string
	backend    string
	storageDir string
	envFile    string
}

type app struct {
	flags  rootFlags
	logger *zap.Logger
	client *novels.Client
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "novelsctl",
		Short:         "Command-line client for the novels platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	f := cmd.PersistentFlags()
	f.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	f.StringVar(&a.flags.apiURL, "api", "", "API base URL (overrides NOVELS_API_URL)")
	f.StringVar(&a.flags.backend, "storage", "", "Storage backend: file, memory, redis or sqlite (overrides NOVELS_STORAGE_BACKEND)")
	f.StringVar(&a.flags.storageDir, "storage-dir", "", "Directory of the file backend (overrides NOVELS_STORAGE_DIR)")
	f.StringVar(&a.flags.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newLoginCommand(a),
		newRegisterCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newStatusCommand(a),
		newRefreshCommand(a),
		newClearCommand(a),
		newTUICommand(a),
		newMetricsCommand(a),
	)
	return cmd, a
}

// execute runs cmd and then releases the client, whether or not the command
// succeeded.
func (a *app) execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if cerr := a.teardown(); err == nil {
		err = cerr
	}
	return err
}

// setup loads configuration, builds the client and hydrates it before any
// command runs.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_ = godotenv.Load(a.flags.envFile)

	logger, err := newLogger(a.flags.debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.logger = logger

	cfg, err := novels.ConfigFromEnv(ctx)
	if err != nil {
		return err
	}
	if a.flags.apiURL != "" {
		cfg.API.BaseURL = a.flags.apiURL
	}
	if a.flags.backend != "" {
		cfg.Storage.Backend = novels.StorageBackend(a.flags.backend)
	}
	if a.flags.storageDir != "" {
		cfg.Storage.Dir = a.flags.storageDir
	}

	client, err := novels.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(novels.NewZapSink(logger)).
		Build(ctx)
	if err != nil {
		return err
	}
	a.client = client

	if err := client.WaitHydrated(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	cmd.SetContext(novels.WithClient(ctx, client))
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.client != nil {
		err = a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func clientFrom(cmd *cobra.Command) (*novels.Client, error) {
	c, ok := novels.ClientFromContext(cmd.Context())
	if !ok {
		return nil, fmt.Errorf("client not initialized")
	}
	return c, nil
}
