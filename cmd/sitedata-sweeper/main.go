package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bnema/sitedata-sweeper/internal/browsingdata"
	"github.com/bnema/sitedata-sweeper/internal/engine"
	"github.com/bnema/sitedata-sweeper/internal/fetcher"
	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/pending"
	"github.com/bnema/sitedata-sweeper/internal/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	verbose bool
	cfg     models.Config
	cfgErr  error
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitedata-sweeper",
	Short: "Clean cookies and site data by per-domain rules",
	Long: `A rule engine that tracks open tabs per cookie container and decides when
cookies, local storage and related site data may be removed: instantly, when the
last tab of a domain closes, or at the next browser start.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/sweeper.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, replayCmd, resolveCmd, pendingCmd, exportCmd, initCmd)
}

func initConfig() {
	settings.Configure(viper.GetViper(), cfgFile)
	cfg, cfgErr = settings.Load(viper.GetViper())
}

func loadedConfig() (models.Config, error) {
	if cfgErr != nil {
		return cfg, fmt.Errorf("config: %w", cfgErr)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// buildSnapshot collects inline, file and subscribed rules into a settings snapshot
func buildSnapshot(ctx context.Context, c models.Config, log *zap.Logger) (*settings.Snapshot, error) {
	rules, err := settings.CollectRules(ctx, c, fetcher.New(c.HTTP), log)
	if err != nil {
		return nil, err
	}
	return settings.FromConfig(c, rules), nil
}

func openPending(ctx context.Context, c models.Config, log *zap.Logger) (*pending.Set, error) {
	if c.Pending.Path == "" {
		return pending.Open(ctx, pending.NewMemoryStore(), log)
	}
	store, err := pending.OpenSQLite(ctx, c.Pending.Path)
	if err != nil {
		return nil, err
	}
	set, err := pending.Open(ctx, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return set, nil
}

// newEngine wires an engine for the loaded config
func newEngine(ctx context.Context, c models.Config, remover browsingdata.Remover, log *zap.Logger) (*engine.Engine, *settings.Holder, *pending.Set, error) {
	snap, err := buildSnapshot(ctx, c, log)
	if err != nil {
		return nil, nil, nil, err
	}
	set, err := openPending(ctx, c, log.Named("pending"))
	if err != nil {
		return nil, nil, nil, err
	}
	holder := settings.NewHolder(snap)
	e := engine.New(engine.Options{
		Settings: holder,
		Pending:  set,
		Remover:  remover,
		Log:      log,
	})
	return e, holder, set, nil
}
