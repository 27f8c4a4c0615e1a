package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docanalyze/internal/apperr"
	"github.com/dgallion1/docanalyze/internal/chunker"
	"github.com/dgallion1/docanalyze/internal/extract"
)

const (
	DefaultTask        = "analyze and restructure"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.3
)

// Task describes what to ask of the completion service.
type Task struct {
	Description string         `json:"task"`
	Format      extract.Format `json:"output_format"`
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
}

// DefaultTaskSpec returns a task with every field at its default.
func DefaultTaskSpec() Task {
	return Task{
		Description: DefaultTask,
		Format:      extract.FormatStructuredJSON,
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

// normalize fills empty fields with defaults and validates the rest.
func (t Task) normalize() (Task, error) {
	if t.Description == "" {
		t.Description = DefaultTask
	}
	if t.Model == "" {
		t.Model = DefaultModel
	}
	if t.MaxTokens == 0 {
		t.MaxTokens = DefaultMaxTokens
	}
	f, err := extract.ParseFormat(string(t.Format))
	if err != nil {
		return t, err
	}
	t.Format = f
	if t.MaxTokens < 0 {
		return t, apperr.Configf("max_tokens %d is not positive", t.MaxTokens)
	}
	if t.Temperature < 0 || t.Temperature > 2 {
		return t, apperr.Configf("temperature %.2f is outside [0, 2]", t.Temperature)
	}
	return t, nil
}

// Processor sends one request per piece and parses the response.
type Processor struct {
	completer extract.Completer
	retry     RetryPolicy
	stats     *extract.LLMStats
	metrics   *Metrics
	log       *slog.Logger
}

func NewProcessor(c extract.Completer, retry RetryPolicy, stats *extract.LLMStats, metrics *Metrics, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{completer: c, retry: retry, stats: stats, metrics: metrics, log: log}
}

// ProcessWhole analyzes the full serialized content in one request.
func (p *Processor) ProcessWhole(ctx context.Context, content string, task Task) (*extract.Result, error) {
	req := extract.Request{
		Model:       task.Model,
		System:      extract.SystemPrompt(task.Description, task.Format),
		User:        extract.UserPrompt("", content),
		MaxTokens:   task.MaxTokens,
		Temperature: task.Temperature,
	}
	return p.call(ctx, req, task.Format, 0, 1)
}

// Process analyzes one piece, carrying rolling context from the previous one.
func (p *Processor) Process(ctx context.Context, piece chunker.Piece, rolling string, task Task) (extract.PieceResult, error) {
	req := extract.Request{
		Model:       task.Model,
		System:      extract.PartSystemPrompt(task.Description, task.Format, piece.Index, piece.Total),
		User:        extract.UserPrompt(rolling, piece.Text),
		MaxTokens:   task.MaxTokens,
		Temperature: task.Temperature,
	}
	res, err := p.call(ctx, req, task.Format, piece.Index, piece.Total)
	if err != nil {
		return extract.PieceResult{}, err
	}
	return extract.PieceResult{Index: piece.Index, Total: piece.Total, Result: res}, nil
}

func (p *Processor) call(ctx context.Context, req extract.Request, format extract.Format, index, total int) (*extract.Result, error) {
	log := p.log.With("req_id", uuid.NewString(), "model", req.Model, "piece", index+1, "total", total)

	var text string
	start := time.Now()
	err := withRetry(ctx, p.retry, func(attempt int, prev error) {
		log.Warn("retrying completion", "attempt", attempt, "error", prev)
		p.metrics.observeRetry()
		if p.stats != nil {
			p.stats.RecordRetry()
		}
	}, func(ctx context.Context) error {
		var err error
		text, err = p.completer.Complete(ctx, req)
		return err
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Error("completion failed", "elapsed_ms", elapsed.Milliseconds(), "error", err)
		p.metrics.observeCompletion("error", elapsed.Seconds())
		if p.stats != nil {
			p.stats.RecordError()
		}
		return nil, apperr.Service(index, total, err)
	}
	if p.stats != nil {
		p.stats.Record(elapsed.Milliseconds())
	}

	res, perr := extract.ParseResponse(text, format)
	if perr != nil {
		log.Warn("structured parse failed, keeping raw text", "error", apperr.Format(index, total, perr))
		p.metrics.observeCompletion("fallback", elapsed.Seconds())
		if p.stats != nil {
			p.stats.RecordFallback()
		}
		return res, nil
	}
	log.Info("completion done", "elapsed_ms", elapsed.Milliseconds(), "format", res.Format)
	p.metrics.observeCompletion("ok", elapsed.Seconds())
	return res, nil
}
