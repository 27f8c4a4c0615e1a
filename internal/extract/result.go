package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dgallion1/docanalyze/internal/apperr"
)

// Format is the requested output format of an analysis.
type Format string

const (
	FormatStructuredJSON Format = "structured_json"
	FormatMarkdown       Format = "markdown"
	FormatSummary        Format = "summary"
	// FormatText marks a structured response that could not be parsed.
	FormatText Format = "text"
)

// ParseFormat validates a caller-supplied format. Empty means structured_json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimSpace(s)); f {
	case "":
		return FormatStructuredJSON, nil
	case FormatStructuredJSON, FormatMarkdown, FormatSummary:
		return f, nil
	default:
		return "", apperr.Configf("unsupported output format %q", s)
	}
}

// ImagesAnalysis aggregates image information reported by the model.
type ImagesAnalysis struct {
	TotalImages   int                 `json:"total_images"`
	ImagesByPage  map[string][]string `json:"images_by_page,omitempty"`
	ImageContexts []string            `json:"image_contexts,omitempty"`
}

// Analysis is the structured_json response shape. Every field is optional.
type Analysis struct {
	Summary           string          `json:"summary,omitempty"`
	KeyTopics         []string        `json:"key_topics,omitempty"`
	ImportantPoints   []string        `json:"important_points,omitempty"`
	StructuredContent map[string]any  `json:"structured_content,omitempty"`
	ImagesAnalysis    *ImagesAnalysis `json:"images_analysis,omitempty"`
	Insights          []string        `json:"insights,omitempty"`
	Recommendations   []string        `json:"recommendations,omitempty"`
}

// ProcessingInfo describes how a result was produced.
type ProcessingInfo struct {
	Chunked        bool  `json:"chunked"`
	TotalPieces    int   `json:"total_pieces"`
	FallbackPieces []int `json:"fallback_pieces,omitempty"`
	OverflowPieces []int `json:"overflow_pieces,omitempty"`
}

// Result is an analysis outcome. Structured results carry Analysis, whose
// fields are flattened into the top-level JSON object. Markdown and summary
// results carry Content. A structured response that failed to parse carries
// RawResponse with Format set to "text".
type Result struct {
	*Analysis
	Content        string          `json:"content,omitempty"`
	RawResponse    string          `json:"raw_response,omitempty"`
	Format         Format          `json:"format"`
	ProcessingInfo *ProcessingInfo `json:"processing_info,omitempty"`
}

// PieceResult is the result for one piece of a chunked run.
type PieceResult struct {
	Index  int
	Total  int
	Result *Result
}

// Fallback reports whether the structured parse failed.
func (r *Result) Fallback() bool {
	return r.Format == FormatText
}

// ContextText returns the text carried forward to the next piece: the summary
// if present, otherwise the content, otherwise the raw response.
func (r *Result) ContextText() string {
	if r.Analysis != nil && r.Summary != "" {
		return r.Summary
	}
	if r.Content != "" {
		return r.Content
	}
	return r.RawResponse
}

// WriteTo writes the result the way it should be saved: indented JSON for
// parsed structured results, plain text for everything else.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	var data []byte
	if r.Format == FormatStructuredJSON && r.RawResponse == "" {
		var sb strings.Builder
		enc := json.NewEncoder(&sb)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return 0, fmt.Errorf("encode result: %w", err)
		}
		data = []byte(sb.String())
	} else {
		text := r.Content
		if text == "" {
			text = r.RawResponse
		}
		data = []byte(text)
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Save writes the result to path.
func (r *Result) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

const analysisSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "key_topics": {"$ref": "#/$defs/strings"},
    "important_points": {"$ref": "#/$defs/strings"},
    "structured_content": {"type": "object"},
    "images_analysis": {
      "type": "object",
      "properties": {
        "total_images": {"type": "integer", "minimum": 0},
        "images_by_page": {
          "type": "object",
          "additionalProperties": {"$ref": "#/$defs/strings"}
        },
        "image_contexts": {"$ref": "#/$defs/strings"}
      }
    },
    "insights": {"$ref": "#/$defs/strings"},
    "recommendations": {"$ref": "#/$defs/strings"}
  },
  "$defs": {
    "strings": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledAnalysisSchema = jsonschema.MustCompileString("analysis.json", analysisSchema)

// ParseResponse turns a completion response into a Result. For structured_json
// the response must be a JSON object matching the analysis shape; otherwise the
// fallback result is returned together with the parse error. The returned
// Result is never nil.
func ParseResponse(text string, format Format) (*Result, error) {
	if format != FormatStructuredJSON {
		return &Result{Content: text, Format: format}, nil
	}

	body := stripCodeBlock(text)
	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return fallback(text), fmt.Errorf("parse json: %w (raw: %s)", err, truncate(body, 200))
	}
	if err := compiledAnalysisSchema.Validate(raw); err != nil {
		return fallback(text), fmt.Errorf("json does not match analysis shape: %w", err)
	}
	var a Analysis
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return fallback(text), fmt.Errorf("decode analysis: %w", err)
	}
	return &Result{Analysis: &a, Format: FormatStructuredJSON}, nil
}

func fallback(text string) *Result {
	return &Result{RawResponse: text, Format: FormatText}
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
