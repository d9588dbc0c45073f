package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voxelcraft.ai/quartermaster/internal/claims"
	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/persistence/journal"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/planner"
	"voxelcraft.ai/quartermaster/internal/quartermaster"
	"voxelcraft.ai/quartermaster/internal/world"
	"voxelcraft.ai/quartermaster/internal/world/memworld"
)

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", s)
	}
	return n, nil
}

func (a *app) service(kb *knowledge.Base, env world.Env, mem planner.Memory, opts ...quartermaster.Option) *quartermaster.Service {
	cfg := quartermaster.Config{Capabilities: a.cfg.Capabilities, Planner: a.cfg.Planner, Executor: a.cfg.Executor}
	return quartermaster.New(kb, env, mem, cfg, a.logger, opts...)
}

func (a *app) planCmd() *cobra.Command {
	var (
		worldPath  string
		execute    bool
		journalDir string
	)
	cmd := &cobra.Command{
		Use:   "plan ITEM COUNT",
		Short: "Plan an acquisition against a world snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := parseCount(args[1])
			if err != nil {
				return err
			}
			kb, err := knowledge.Load(a.cfg.KnowledgeDir)
			if err != nil {
				return fmt.Errorf("load knowledge: %w", err)
			}
			snap, err := memworld.LoadSnapshot(worldPath)
			if err != nil {
				return err
			}
			w := memworld.New(snap, kb)
			reg := claims.NewMemory()
			for agent, stock := range snap.Spare {
				if err := reg.SetSpare(cmd.Context(), agent, stock); err != nil {
					return err
				}
			}

			var opts []quartermaster.Option
			if journalDir != "" {
				plans := journal.NewPlans(journalDir)
				defer plans.Close()
				opts = append(opts, quartermaster.WithJournal(plans))
			}
			svc := a.service(kb, w.Env(reg), memory.New(nil, a.logger), opts...)
			out := cmd.OutOrStdout()
			pl, err := svc.Plan(cmd.Context(), args[0], count)
			if pl != nil {
				fmt.Fprint(out, plan.Describe(pl.Plan))
				fmt.Fprintf(out, "result %d/%d, cost %.1f\n", pl.Plan.Result(), count, pl.Plan.Cost())
				for i, s := range pl.Steps {
					fmt.Fprintf(out, "%2d. %s\n", i+1, plan.Summary(s))
				}
			}
			if err != nil {
				return fmt.Errorf("%s", failure.Message(err))
			}
			if !execute {
				return nil
			}
			got, err := svc.Execute(cmd.Context(), pl)
			fmt.Fprintf(out, "gained %d %s\n", got, pl.Plan.Target)
			if err != nil {
				return fmt.Errorf("%s", failure.Message(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldPath, "world", "configs/worlds/sample.yaml", "world snapshot (YAML)")
	cmd.Flags().BoolVar(&execute, "execute", false, "also execute the plan against the snapshot")
	cmd.Flags().StringVar(&journalDir, "journal", "", "record the plan in this journal directory")
	return cmd
}
