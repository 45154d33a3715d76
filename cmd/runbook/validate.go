package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"runbook/internal/core"
)

func newValidateCmd(g *globals) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the runbook and print its execution plan without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := g.reporter()
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			path, cfg, err := loadConfig(rep, configPath, wd)
			if err != nil {
				return err
			}

			batches := core.NewScheduler().Batches(cfg.Steps)
			rep.Success("%s is valid: %d variable(s), %d step(s) in %d batch(es)",
				path, len(cfg.Variables), len(cfg.Steps), len(batches))
			for i, batch := range batches {
				mode := "sequential"
				if batch.Parallel {
					mode = fmt.Sprintf("parallel x%d", len(batch.Steps))
				}
				rep.Info("batch %d (%s)", i+1, mode)
				for _, s := range batch.Steps {
					rep.Command(s.Step.Label(s.Index) + ": " + s.Step.Bash)
				}
			}
			for i, v := range cfg.Variables {
				if kind, _ := v.Source(); kind == core.SourceUnset {
					rep.Warn("variable %d (%q) has neither value nor valueFrom and will be skipped", i+1, v.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the runbook file")
	return cmd
}
