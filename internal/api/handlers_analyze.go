package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgallion1/docanalyze/internal/apperr"
	"github.com/dgallion1/docanalyze/internal/doctree"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

// analyzeRequest is the body of /api/analyze, /api/plan and /api/jobs.
// Omitted task fields take the server defaults.
type analyzeRequest struct {
	Document     json.RawMessage `json:"document"`
	DocID        string          `json:"doc_id,omitempty"`
	Task         string          `json:"task,omitempty"`
	OutputFormat string          `json:"output_format,omitempty"`
	Model        string          `json:"model,omitempty"`
	MaxTokens    *int            `json:"max_tokens,omitempty"`
	Temperature  *float64        `json:"temperature,omitempty"`
}

// decodeAnalyzeRequest reads the request body and the embedded document.
func (s *Server) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (*analyzeRequest, *doctree.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxDocumentBytes)

	var req analyzeRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, fmt.Errorf("request exceeds %d bytes: %w", s.cfg.MaxDocumentBytes, err)
		}
		return nil, nil, apperr.Config("invalid request body", err)
	}
	if len(req.Document) == 0 || string(req.Document) == "null" {
		return nil, nil, apperr.Configf("document is required")
	}
	doc, err := doctree.Decode(bytes.NewReader(req.Document))
	if err != nil {
		return nil, nil, err
	}
	return &req, doc, nil
}

// task builds the pipeline task, filling omitted fields from config.
func (s *Server) task(req *analyzeRequest) pipeline.Task {
	t := pipeline.Task{
		Description: s.cfg.DefaultTask,
		Format:      extract.Format(s.cfg.DefaultOutputFormat),
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxResponseTokens,
		Temperature: s.cfg.Temperature,
	}
	if req.Task != "" {
		t.Description = req.Task
	}
	if req.OutputFormat != "" {
		t.Format = extract.Format(req.OutputFormat)
	}
	if req.Model != "" {
		t.Model = req.Model
	}
	if req.MaxTokens != nil {
		t.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		t.Temperature = *req.Temperature
	}
	return t
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, doc, err := s.decodeAnalyzeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.orch.Run(r.Context(), doc, s.task(req))
	if err != nil {
		s.log.Error("analyze failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, doc, err := s.decodeAnalyzeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := s.orch.Plan(doc, s.task(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":            plan,
		"overflow_pieces": plan.Overflow(),
	})
}
