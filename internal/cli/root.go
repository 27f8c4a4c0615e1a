// Package cli implements the docanalyze command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docanalyze/internal/config"
	"github.com/dgallion1/docanalyze/internal/doctree"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

// taskFlags are shared by analyze and plan.
type taskFlags struct {
	task        string
	format      string
	model       string
	maxTokens   int
	temperature float64
}

func (f *taskFlags) register(cmd *cobra.Command, cfg config.Config, withTask bool) {
	fl := cmd.Flags()
	if withTask {
		fl.StringVar(&f.task, "task", cfg.DefaultTask, "Instruction for the analysis")
		fl.Float64Var(&f.temperature, "temperature", cfg.Temperature, "Sampling temperature (0-2)")
	}
	fl.StringVarP(&f.format, "format", "f", cfg.DefaultOutputFormat, "Output format: structured_json, markdown, summary")
	fl.StringVarP(&f.model, "model", "m", cfg.Model, "Model name; selects the context window and tokenizer")
	fl.IntVar(&f.maxTokens, "max-tokens", cfg.MaxResponseTokens, "Tokens reserved for each response")
}

func (f *taskFlags) toTask() pipeline.Task {
	return pipeline.Task{
		Description: f.task,
		Format:      extract.Format(f.format),
		Model:       f.model,
		MaxTokens:   f.maxTokens,
		Temperature: f.temperature,
	}
}

// NewRootCmd builds the command tree. Defaults come from cfg.
func NewRootCmd(cfg config.Config) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "docanalyze",
		Short: "Analyze parsed documents with a language model",
		Long: `docanalyze sends a parsed document (panparsex/v1 JSON) to a language model.
Documents that do not fit the model's context window are split into pieces
along section, paragraph and sentence boundaries, processed in order with a
rolling summary of the previous piece, and merged into one result.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress")

	root.AddCommand(newAnalyzeCmd(cfg), newPlanCmd(cfg))
	return root
}

// Execute runs the root command
func Execute() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd(config.Load()).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func loadDocument(path string) (*doctree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := doctree.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
