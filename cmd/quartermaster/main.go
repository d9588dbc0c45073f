package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"voxelcraft.ai/quartermaster/internal/config"
)

type app struct {
	cfgPath      string
	knowledgeDir string
	verbose      bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "quartermaster",
		Short:         "Plan and carry out item acquisition for a voxel-world agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if a.cfgPath != "" {
				var err error
				if cfg, err = config.Load(a.cfgPath); err != nil {
					return err
				}
			}
			if a.knowledgeDir != "" {
				cfg.KnowledgeDir = a.knowledgeDir
			}
			a.cfg = cfg

			zc := zap.NewProductionConfig()
			if cfg.Log.Development {
				zc = zap.NewDevelopmentConfig()
			}
			if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
				zc.Level = zap.NewAtomicLevelAt(lvl)
			}
			if a.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zc.Build()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&a.knowledgeDir, "knowledge", "", "knowledge catalog directory (overrides knowledge_dir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(a.planCmd(), a.runCmd(), a.kbCmd(), a.journalCmd(), a.recordsCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "quartermaster:", err)
		os.Exit(1)
	}
}
