package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxelcraft.ai/quartermaster/internal/persistence/recorddb"
	"voxelcraft.ai/quartermaster/internal/world/memworld"
)

func (a *app) recordsCmd() *cobra.Command {
	records := &cobra.Command{
		Use:   "records",
		Short: "Manage recorded containers and trade partners",
	}
	var path string
	records.PersistentFlags().StringVar(&path, "db", "", "records database (default: records_db from config)")
	open := func() (*recorddb.DB, error) {
		if path == "" {
			path = a.cfg.RecordsDB
		}
		return recorddb.Open(path)
	}
	imp := &cobra.Command{
		Use:   "import WORLD",
		Short: "Seed the records database from a world snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := memworld.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			dim := snap.Self.Dimension
			if dim == "" {
				dim = "OVERWORLD"
			}
			for _, c := range snap.Containers {
				if c.Dimension == "" {
					c.Dimension = dim
				}
				if err := db.UpdateContainer(cmd.Context(), c); err != nil {
					return err
				}
			}
			for _, t := range snap.Traders {
				if t.Dimension == "" {
					t.Dimension = dim
				}
				if err := db.UpsertPartner(cmd.Context(), t); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d containers, %d trade partners\n", len(snap.Containers), len(snap.Traders))
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "Print recorded containers and trade partners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			out := cmd.OutOrStdout()
			cs, err := db.Containers(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cs {
				fmt.Fprintf(out, "container %s %s %v\n", c.ID, c.Dimension, c.Stock)
			}
			ps, err := db.Partners(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range ps {
				fmt.Fprintf(out, "partner %s %s offers=%d\n", p.ID, p.Name, len(p.Offers))
			}
			return nil
		},
	}
	records.AddCommand(imp, list)
	return records
}
