package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voxelcraft.ai/quartermaster/internal/persistence/journal"
)

func (a *app) journalCmd() *cobra.Command {
	var (
		dir     string
		item    string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recorded plans and executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.JournalDir
			}
			files, err := journal.ListFiles(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var n int
			for _, path := range files {
				entries, err := journal.ReadFile(path)
				if err != nil {
					return err
				}
				for _, e := range entries {
					if item != "" && e.Item != item {
						continue
					}
					n++
					fmt.Fprintln(out, journalLine(e))
					if verbose {
						for _, s := range e.Steps {
							fmt.Fprintf(out, "    %s\n", s)
						}
					}
				}
			}
			fmt.Fprintf(out, "%d entries in %d files\n", n, len(files))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "journal directory (default: journal_dir from config)")
	cmd.Flags().StringVar(&item, "item", "", "only entries for this item")
	cmd.Flags().BoolVar(&verbose, "steps", false, "print recorded steps")
	return cmd
}

func journalLine(e journal.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-7s %s %s %d/%d", e.At.UTC().Format("2006-01-02T15:04:05Z"), e.Event, shortID(e.PlanID), e.Item, e.Result, e.Want)
	if e.Event == "plan" {
		fmt.Fprintf(&b, " cost %.1f, %d steps", e.Cost, len(e.Steps))
	} else {
		fmt.Fprintf(&b, " completed %d", e.Completed)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " [%s] %s", e.ErrorKind, e.Error)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
