package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docanalyze/internal/chunker"
	"github.com/dgallion1/docanalyze/internal/config"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

func newPlanCmd(cfg config.Config) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "plan <document.json>",
		Short: "Show how a document would be split, without calling the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			orch := pipeline.NewOrchestrator(nil, pipeline.Options{
				RollingContextChars: cfg.RollingContextChars,
				Meters:              chunker.NewMeterCache(cfg.MeterCacheSize),
				Logger:              slog.Default(),
			})
			plan, err := orch.Plan(doc, flags.toTask())
			if err != nil {
				return err
			}
			renderPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	flags.register(cmd, cfg, false)
	return cmd
}
