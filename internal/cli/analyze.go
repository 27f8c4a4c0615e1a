package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docanalyze/internal/chunker"
	"github.com/dgallion1/docanalyze/internal/config"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

// completerFactory is replaced in tests.
var completerFactory = extract.NewCompleter

func newAnalyzeCmd(cfg config.Config) *cobra.Command {
	var (
		flags    taskFlags
		output   string
		provider string
	)
	cmd := &cobra.Command{
		Use:   "analyze <document.json>",
		Short: "Analyze a document and print or save the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}

			run := cfg
			run.Provider = provider
			if err := run.ValidateProvider(); err != nil {
				return err
			}
			completer, closeFn, err := completerFactory(run.Completion())
			if err != nil {
				return err
			}
			defer closeFn()

			orch := pipeline.NewOrchestrator(completer, pipeline.Options{
				Retry: pipeline.RetryPolicy{
					MaxRetries: uint64(cfg.MaxRetries),
					BaseDelay:  cfg.RetryBaseDelay,
					MaxDelay:   cfg.RetryMaxDelay,
				},
				RollingContextChars: cfg.RollingContextChars,
				Meters:              chunker.NewMeterCache(cfg.MeterCacheSize),
				Logger:              slog.Default(),
			})

			stderr := cmd.ErrOrStderr()
			res, err := orch.Run(cmd.Context(), doc, flags.toTask(),
				pipeline.WithProgress(func(done, total int) {
					if total > 1 {
						fmt.Fprintln(stderr, dimStyle.Render(fmt.Sprintf("piece %d/%d", done, total)))
					}
				}))
			if err != nil {
				return err
			}

			if output == "" {
				_, err = res.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := res.Save(output); err != nil {
				return err
			}
			renderSaved(stderr, output, res)
			return nil
		},
	}
	flags.register(cmd, cfg, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().StringVar(&provider, "provider", cfg.Provider, "Completion provider: anthropic or openai")
	return cmd
}
