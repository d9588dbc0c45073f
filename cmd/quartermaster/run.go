package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/quartermaster/internal/claims"
	"voxelcraft.ai/quartermaster/internal/client"
	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/persistence/journal"
	"voxelcraft.ai/quartermaster/internal/persistence/recorddb"
	"voxelcraft.ai/quartermaster/internal/quartermaster"
	"voxelcraft.ai/quartermaster/internal/telemetry"
	"voxelcraft.ai/quartermaster/internal/world"
)

const digestKey = "knowledge_digest"

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run ITEM COUNT",
		Short: "Connect to the voxel server and acquire items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := parseCount(args[1])
			if err != nil {
				return err
			}
			got, err := a.run(cmd.Context(), args[0], count)
			fmt.Fprintf(cmd.OutOrStdout(), "gained %d %s\n", got, args[0])
			if err != nil {
				return fmt.Errorf("%s", failure.Message(err))
			}
			return nil
		},
	}
}

func (a *app) run(ctx context.Context, item string, count int) (int, error) {
	log := a.logger
	kb, err := knowledge.Load(a.cfg.KnowledgeDir)
	if err != nil {
		return 0, fmt.Errorf("load knowledge: %w", err)
	}

	db, err := recorddb.Open(a.cfg.RecordsDB)
	if err != nil {
		return 0, fmt.Errorf("open records: %w", err)
	}
	defer db.Close()
	if prev, err := db.Meta(ctx, digestKey); err != nil {
		return 0, err
	} else if prev != kb.Digest {
		log.Info("knowledge catalog changed", zap.String("previous", prev), zap.String("current", kb.Digest))
		if err := db.SetMeta(ctx, digestKey, kb.Digest); err != nil {
			return 0, err
		}
	}

	mem := memory.New(db, log.Named("memory"))
	if err := mem.Load(ctx); err != nil {
		return 0, fmt.Errorf("load success memory: %w", err)
	}

	var reg world.Claims
	if a.cfg.RedisURL != "" {
		r, err := claims.Dial(ctx, a.cfg.RedisURL, "qm:")
		if err != nil {
			return 0, err
		}
		defer r.Close()
		reg = r
	} else {
		reg = claims.NewMemory()
	}

	plans := journal.NewPlans(a.cfg.JournalDir)
	defer func() {
		if err := plans.Close(); err != nil {
			log.Warn("close journal", zap.Error(err))
		}
	}()
	metrics := telemetry.NewMetrics()

	cl, err := client.Dial(ctx, a.cfg.ClientConfig(), log.Named("client"))
	if err != nil {
		return 0, err
	}
	svc := a.service(kb, cl.Env(db, db, reg), mem,
		quartermaster.WithMetrics(metrics), quartermaster.WithJournal(plans))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cl.Run(ctx) })
	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux(metrics), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("metrics listening", zap.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	var got int
	g.Go(func() error {
		defer cancel()
		if err := cl.Ready(ctx); err != nil {
			return err
		}
		var err error
		if got, err = svc.Acquire(ctx, item, count); err != nil {
			return err
		}
		return svc.Advertise(ctx, map[string]int{item: count})
	})
	return got, g.Wait()
}

func metricsMux(m *telemetry.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
