package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docanalyze/internal/apperr"
	"github.com/dgallion1/docanalyze/internal/doctree"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pathstore"
)

// ResultStore persists finished analyses. *pathstore.Client satisfies it.
type ResultStore interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
}

// AnalysisPrefix is the pathstore key under which a document's analysis lives.
func AnalysisPrefix(docID string) string {
	return "analyses/" + docID
}

// Worker processes a single analysis job.
type Worker struct {
	orch  *Orchestrator
	store ResultStore
	log   *slog.Logger
}

// NewWorker returns a worker. store may be nil to skip persistence.
func NewWorker(orch *Orchestrator, store ResultStore, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{orch: orch, store: store, log: log}
}

// Process runs the analysis for a job and records the outcome on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	doc := job.Document()

	job.SetStatus(StatusPlanning, "planning")
	job.mu.Lock()
	job.ContentHash = ContentHashHex([]byte(doctree.Serialize(doc).Text))
	job.mu.Unlock()

	task := job.Task()
	res, err := w.orch.Run(ctx, doc, task,
		WithPlanned(func(p *Plan) {
			task = p.Task
			job.SetChunked(p.Chunked)
			job.SetProgress(0, len(p.Pieces))
			job.SetStatus(StatusProcessing, "processing")
		}),
		WithProgress(func(done, total int) {
			job.SetProgress(done, total)
			if done == total && total > 1 {
				job.SetStatus(StatusMerging, "merging")
			}
		}),
	)
	if err != nil {
		job.AddError(err.Error())
		if apperr.Is(err, apperr.KindCancelled) {
			log.Warn("analysis cancelled", "error", err)
			job.SetStatus(StatusCancelled, "cancelled")
			return
		}
		log.Error("analysis failed", "error", err)
		job.SetStatus(StatusFailed, string(apperr.KindOf(err)))
		return
	}
	job.SetResult(res)

	if w.store != nil {
		if err := w.persist(ctx, job, doc, task, res); err != nil {
			log.Error("persist failed", "error", err)
			job.AddError(fmt.Sprintf("persist: %s", err))
		}
	}

	log.Info("analysis complete", "format", res.Format)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) persist(ctx context.Context, job *Job, doc *doctree.Document, task Task, res *extract.Result) error {
	prefix := AnalysisPrefix(job.DocID)
	if err := w.store.PutNode(ctx, prefix+"/result", pathstore.NodeRequest{
		Value:      res,
		MemoryType: "semantic",
		Salience:   0.5,
		Source:     "docanalyze:" + job.DocID,
	}); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	snap := job.Snapshot()
	return w.store.PutNode(ctx, prefix+"/meta", pathstore.NodeRequest{
		Value: map[string]any{
			"job_id":       job.ID,
			"title":        doc.Meta.Title,
			"source":       doc.Meta.Source,
			"content_hash": job.ContentHash,
			"model":        task.Model,
			"format":       string(res.Format),
			"chunked":      snap.Progress.Chunked,
			"total_pieces": snap.Progress.TotalPieces,
			"created_at":   job.CreatedAt.Format(time.RFC3339),
			"completed_at": time.Now().Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     "docanalyze:" + job.DocID,
	})
}
