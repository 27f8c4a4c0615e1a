// Package merge recombines per-piece analysis results into one document result.
package merge

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docanalyze/internal/extract"
)

// Merge combines ordered piece results. Prose is concatenated with piece labels,
// list fields are unioned without duplicates in first-seen order, structured
// content keys are prefixed with their piece number, and image counts are
// summed. Pieces whose structured parse failed contribute their raw text to the
// summary and are listed in ProcessingInfo.FallbackPieces.
func Merge(results []extract.PieceResult, format extract.Format) *extract.Result {
	info := &extract.ProcessingInfo{Chunked: true, TotalPieces: len(results)}
	if format != extract.FormatStructuredJSON {
		return mergeText(results, format, info)
	}

	var (
		summaries []string
		out       extract.Analysis
		topics    = newSet()
		points    = newSet()
		insights  = newSet()
		recs      = newSet()
		images    *imageAgg
	)
	for _, pr := range results {
		n := pr.Index + 1
		r := pr.Result
		if r == nil {
			continue
		}
		if r.Analysis == nil {
			info.FallbackPieces = append(info.FallbackPieces, n)
			if text := r.ContextText(); text != "" {
				summaries = append(summaries, label(n, text))
			}
			continue
		}
		a := r.Analysis
		if a.Summary != "" {
			summaries = append(summaries, label(n, a.Summary))
		}
		topics.add(a.KeyTopics...)
		points.add(a.ImportantPoints...)
		insights.add(a.Insights...)
		recs.add(a.Recommendations...)
		for k, v := range a.StructuredContent {
			if out.StructuredContent == nil {
				out.StructuredContent = make(map[string]any)
			}
			out.StructuredContent[fmt.Sprintf("piece_%d_%s", n, k)] = v
		}
		if a.ImagesAnalysis != nil {
			if images == nil {
				images = newImageAgg()
			}
			images.add(a.ImagesAnalysis)
		}
	}

	out.Summary = strings.Join(summaries, "\n\n")
	out.KeyTopics = topics.items
	out.ImportantPoints = points.items
	out.Insights = insights.items
	out.Recommendations = recs.items
	if images != nil {
		out.ImagesAnalysis = images.result()
	}
	return &extract.Result{Analysis: &out, Format: extract.FormatStructuredJSON, ProcessingInfo: info}
}

func mergeText(results []extract.PieceResult, format extract.Format, info *extract.ProcessingInfo) *extract.Result {
	var parts []string
	for _, pr := range results {
		if pr.Result == nil {
			continue
		}
		if text := pr.Result.ContextText(); text != "" {
			parts = append(parts, label(pr.Index+1, text))
		}
	}
	return &extract.Result{Content: strings.Join(parts, "\n\n"), Format: format, ProcessingInfo: info}
}

func label(n int, text string) string {
	return fmt.Sprintf("Piece %d: %s", n, text)
}

// set is an insertion-ordered string set.
type set struct {
	seen  map[string]struct{}
	items []string
}

func newSet() *set {
	return &set{seen: make(map[string]struct{})}
}

func (s *set) add(vals ...string) {
	for _, v := range vals {
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}

type imageAgg struct {
	total    int
	pageKeys []string
	byPage   map[string]*set
	contexts *set
}

func newImageAgg() *imageAgg {
	return &imageAgg{byPage: make(map[string]*set), contexts: newSet()}
}

func (g *imageAgg) add(ia *extract.ImagesAnalysis) {
	g.total += ia.TotalImages
	for page, ids := range ia.ImagesByPage {
		s, ok := g.byPage[page]
		if !ok {
			s = newSet()
			g.byPage[page] = s
			g.pageKeys = append(g.pageKeys, page)
		}
		s.add(ids...)
	}
	g.contexts.add(ia.ImageContexts...)
}

func (g *imageAgg) result() *extract.ImagesAnalysis {
	out := &extract.ImagesAnalysis{TotalImages: g.total, ImageContexts: g.contexts.items}
	if len(g.pageKeys) > 0 {
		out.ImagesByPage = make(map[string][]string, len(g.pageKeys))
		for _, page := range g.pageKeys {
			out.ImagesByPage[page] = g.byPage[page].items
		}
	}
	return out
}
