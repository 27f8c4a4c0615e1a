package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/dgallion1/docanalyze/internal/apperr"
	"github.com/dgallion1/docanalyze/internal/chunker"
	"github.com/dgallion1/docanalyze/internal/doctree"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/merge"
)

// DefaultRollingContextChars caps the context carried between pieces.
const DefaultRollingContextChars = 1000

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Retry               RetryPolicy
	RollingContextChars int
	Meters              *chunker.MeterCache
	Stats               *extract.LLMStats
	Metrics             *Metrics
	Logger              *slog.Logger
}

// Orchestrator runs a document through the completion service, splitting it
// into pieces when it does not fit one request.
type Orchestrator struct {
	processor    *Processor
	meters       *chunker.MeterCache
	rollingChars int
	metrics      *Metrics
	log          *slog.Logger
}

func NewOrchestrator(c extract.Completer, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meters == nil {
		opts.Meters = chunker.NewMeterCache(0)
	}
	if opts.RollingContextChars <= 0 {
		opts.RollingContextChars = DefaultRollingContextChars
	}
	return &Orchestrator{
		processor:    NewProcessor(c, opts.Retry, opts.Stats, opts.Metrics, opts.Logger),
		meters:       opts.Meters,
		rollingChars: opts.RollingContextChars,
		metrics:      opts.Metrics,
		log:          opts.Logger,
	}
}

// Plan is the outcome of planning a run without calling the service.
type Plan struct {
	Task          Task            `json:"task"`
	Encoding      string          `json:"encoding"`
	Window        int             `json:"context_window"`
	Budget        int             `json:"budget"`
	ContentTokens int             `json:"content_tokens"`
	Chunked       bool            `json:"chunked"`
	PieceBudget   int             `json:"piece_budget,omitempty"`
	Pieces        []chunker.Piece `json:"pieces"`

	content doctree.Serialized
}

// Overflow lists the 1-based numbers of pieces that exceed the piece budget.
func (p *Plan) Overflow() []int {
	var out []int
	for _, pc := range p.Pieces {
		if pc.Overflow {
			out = append(out, pc.Index+1)
		}
	}
	return out
}

// Plan serializes doc, measures it and splits it if needed. No requests are made.
func (o *Orchestrator) Plan(doc *doctree.Document, task Task) (*Plan, error) {
	task, err := task.normalize()
	if err != nil {
		return nil, err
	}
	s := doctree.Serialize(doc)
	meter := o.meters.ForModel(task.Model)
	planner := chunker.Planner{Counter: meter}

	budget, err := planner.Plan(task.Model, wholeInstruction(task), task.MaxTokens)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Task:          task,
		Encoding:      meter.Encoding(),
		Window:        chunker.ContextWindow(task.Model),
		Budget:        budget,
		ContentTokens: meter.Count(s.Text),
		content:       s,
	}
	if p.ContentTokens <= budget {
		p.Pieces = []chunker.Piece{{Index: 0, Total: 1, Text: s.Text, End: len(s.Text), Tokens: p.ContentTokens}}
		return p, nil
	}

	// Rolling context is capped in characters; assume one token per character.
	p.PieceBudget, err = planner.Plan(task.Model, partInstruction(task), task.MaxTokens+o.rollingChars)
	if err != nil {
		return nil, err
	}
	p.Pieces, err = (&chunker.Chunker{Counter: meter}).Split(s, p.PieceBudget)
	if err != nil {
		return nil, err
	}
	p.Chunked = true
	return p, nil
}

// wholeInstruction is the fixed text of a single-call request.
func wholeInstruction(task Task) string {
	return extract.SystemPrompt(task.Description, task.Format) + "\n" + extract.ContentLead
}

// partInstruction is the fixed text of a piece request. Placeholder ordinals
// stand in for the widest piece numbers.
func partInstruction(task Task) string {
	return extract.PartSystemPrompt(task.Description, task.Format, math.MaxInt16-1, math.MaxInt16) +
		"\n" + extract.ContextLabel + "\n\n" + extract.ContentLead
}

// ProgressFunc is told how many of total pieces are done.
type ProgressFunc func(done, total int)

// RunOption configures a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	progress ProgressFunc
	planned  func(*Plan)
}

// WithProgress reports progress after planning and after every piece.
func WithProgress(fn ProgressFunc) RunOption {
	return func(c *runConfig) { c.progress = fn }
}

// WithPlanned calls fn once planning succeeds, before any request is sent.
func WithPlanned(fn func(*Plan)) RunOption {
	return func(c *runConfig) { c.planned = fn }
}

// Run analyzes doc. Content that fits one request is processed in one call and
// the result returned as is. Otherwise pieces are processed strictly in order,
// each request carrying the previous piece's summary, and the piece results are
// merged. Any failure discards the pieces completed so far.
func (o *Orchestrator) Run(ctx context.Context, doc *doctree.Document, task Task, opts ...RunOption) (*extract.Result, error) {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	progress := func(done, total int) {
		if rc.progress != nil {
			rc.progress(done, total)
		}
	}

	plan, err := o.Plan(doc, task)
	if err != nil {
		o.metrics.observeRun("none", "error")
		return nil, err
	}
	task = plan.Task
	if rc.planned != nil {
		rc.planned(plan)
	}
	log := o.log.With("model", task.Model, "format", task.Format, "content_tokens", plan.ContentTokens, "budget", plan.Budget)

	if !plan.Chunked {
		progress(0, 1)
		if err := ctx.Err(); err != nil {
			o.metrics.observeRun("single", "cancelled")
			return nil, apperr.Cancelled(0, 1, err)
		}
		log.Info("processing whole document")
		res, err := o.processor.ProcessWhole(ctx, plan.content.Text, task)
		if err != nil {
			return nil, o.runError(ctx, "single", 0, 1, err)
		}
		progress(1, 1)
		o.metrics.observeRun("single", "ok")
		return res, nil
	}

	n := len(plan.Pieces)
	overflow := plan.Overflow()
	log.Info("processing in pieces", "pieces", n, "piece_budget", plan.PieceBudget, "overflow", len(overflow))
	o.metrics.observePieces(n, len(overflow))
	progress(0, n)

	results := make([]extract.PieceResult, 0, n)
	rolling := ""
	for _, piece := range plan.Pieces {
		if err := ctx.Err(); err != nil {
			o.metrics.observeRun("chunked", "cancelled")
			log.Warn("run cancelled", "piece", piece.Index+1, "completed", len(results))
			return nil, apperr.Cancelled(piece.Index, n, err)
		}
		pr, err := o.processor.Process(ctx, piece, rolling, task)
		if err != nil {
			return nil, o.runError(ctx, "chunked", piece.Index, n, err)
		}
		results = append(results, pr)
		rolling = truncateChars(pr.Result.ContextText(), o.rollingChars)
		progress(piece.Index+1, n)
	}

	merged := merge.Merge(results, task.Format)
	merged.ProcessingInfo.OverflowPieces = overflow
	o.metrics.observeRun("chunked", "ok")
	log.Info("merged piece results", "pieces", n, "fallback_pieces", len(merged.ProcessingInfo.FallbackPieces))
	return merged, nil
}

func (o *Orchestrator) runError(ctx context.Context, path string, index, total int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		o.metrics.observeRun(path, "cancelled")
		return apperr.Cancelled(index, total, ctxErr)
	}
	o.metrics.observeRun(path, "error")
	return fmt.Errorf("run aborted: %w", err)
}

// truncateChars keeps at most n characters of s.
func truncateChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
