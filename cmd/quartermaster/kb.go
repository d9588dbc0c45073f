package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"voxelcraft.ai/quartermaster/internal/knowledge"
)

func (a *app) kbCmd() *cobra.Command {
	kb := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the knowledge catalogs",
	}
	var dir string
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the knowledge catalogs and print their digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.KnowledgeDir
			}
			base, err := knowledge.Load(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok %s\n", dir)
			fmt.Fprintf(out, "digest %s\n", base.Digest)
			return nil
		},
	}
	check.Flags().StringVar(&dir, "dir", "", "catalog directory (default: knowledge_dir from config)")

	var show string
	recipes := &cobra.Command{
		Use:   "recipes ITEM",
		Short: "List the recipes that produce ITEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := knowledge.Load(a.cfg.KnowledgeDir)
			if err != nil {
				return err
			}
			item := args[0]
			if !base.Known(item) {
				if hint := base.Suggest(item); hint != "" {
					return fmt.Errorf("unknown item %s, did you mean %s?", item, hint)
				}
				return fmt.Errorf("unknown item %s", item)
			}
			rs := append(append([]knowledge.RecipeDef(nil), base.CraftRecipes(item)...), base.CookRecipes(item)...)
			sort.Slice(rs, func(i, j int) bool { return rs[i].RecipeID < rs[j].RecipeID })
			out := cmd.OutOrStdout()
			for _, r := range rs {
				if show != "" && r.Kind != show {
					continue
				}
				fmt.Fprintf(out, "%s (%s)", r.RecipeID, r.Kind)
				for _, in := range r.Inputs {
					fmt.Fprintf(out, " %d %s", in.Count, in.Item)
				}
				fmt.Fprintf(out, " -> %d %s\n", r.Yield(item), item)
			}
			return nil
		},
	}
	recipes.Flags().StringVar(&show, "kind", "", "only recipes of this kind (craft, cook)")

	kb.AddCommand(check, recipes)
	return kb
}
