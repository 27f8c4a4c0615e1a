package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docanalyze/internal/extract"
)

func structured(i int, a extract.Analysis) extract.PieceResult {
	return extract.PieceResult{Index: i, Total: 2, Result: &extract.Result{Analysis: &a, Format: extract.FormatStructuredJSON}}
}

func TestMerge_ListsAreUnionedWithoutDuplicates(t *testing.T) {
	got := Merge([]extract.PieceResult{
		structured(0, extract.Analysis{KeyTopics: []string{"a", "b"}, Insights: []string{"x"}}),
		structured(1, extract.Analysis{KeyTopics: []string{"b", "c"}, Insights: []string{"x", "y"}}),
	}, extract.FormatStructuredJSON)

	require.NotNil(t, got.Analysis)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, got.KeyTopics)
	assert.Equal(t, []string{"x", "y"}, got.Insights)
	assert.Empty(t, got.Recommendations)
}

func TestMerge_SummariesAreLabelled(t *testing.T) {
	got := Merge([]extract.PieceResult{
		structured(0, extract.Analysis{Summary: "first part"}),
		structured(1, extract.Analysis{Summary: "second part"}),
	}, extract.FormatStructuredJSON)

	assert.Equal(t, "Piece 1: first part\n\nPiece 2: second part", got.Summary)
}

func TestMerge_ImageCountsAreSummed(t *testing.T) {
	got := Merge([]extract.PieceResult{
		structured(0, extract.Analysis{ImagesAnalysis: &extract.ImagesAnalysis{
			TotalImages:   2,
			ImagesByPage:  map[string][]string{"1": {"img1", "img2"}},
			ImageContexts: []string{"chart"},
		}}),
		structured(1, extract.Analysis{ImagesAnalysis: &extract.ImagesAnalysis{
			TotalImages:   3,
			ImagesByPage:  map[string][]string{"1": {"img2"}, "4": {"img5"}},
			ImageContexts: []string{"chart", "photo"},
		}}),
	}, extract.FormatStructuredJSON)

	require.NotNil(t, got.ImagesAnalysis)
	assert.Equal(t, 5, got.ImagesAnalysis.TotalImages)
	assert.Equal(t, []string{"img1", "img2"}, got.ImagesAnalysis.ImagesByPage["1"])
	assert.Equal(t, []string{"img5"}, got.ImagesAnalysis.ImagesByPage["4"])
	assert.Equal(t, []string{"chart", "photo"}, got.ImagesAnalysis.ImageContexts)
}

func TestMerge_StructuredContentIsNamespaced(t *testing.T) {
	got := Merge([]extract.PieceResult{
		structured(0, extract.Analysis{StructuredContent: map[string]any{"intro": "one"}}),
		structured(1, extract.Analysis{StructuredContent: map[string]any{"intro": "two"}}),
	}, extract.FormatStructuredJSON)

	assert.Equal(t, map[string]any{"piece_1_intro": "one", "piece_2_intro": "two"}, got.StructuredContent)
}

func TestMerge_FallbackPieces(t *testing.T) {
	got := Merge([]extract.PieceResult{
		structured(0, extract.Analysis{Summary: "ok", KeyTopics: []string{"t"}}),
		{Index: 1, Total: 2, Result: &extract.Result{RawResponse: "free text", Format: extract.FormatText}},
	}, extract.FormatStructuredJSON)

	assert.Equal(t, extract.FormatStructuredJSON, got.Format)
	assert.Equal(t, "Piece 1: ok\n\nPiece 2: free text", got.Summary)
	assert.Equal(t, []string{"t"}, got.KeyTopics)
	require.NotNil(t, got.ProcessingInfo)
	assert.Equal(t, []int{2}, got.ProcessingInfo.FallbackPieces)
}

func TestMerge_ProcessingInfo(t *testing.T) {
	got := Merge([]extract.PieceResult{
		structured(0, extract.Analysis{}),
		structured(1, extract.Analysis{}),
	}, extract.FormatStructuredJSON)

	require.NotNil(t, got.ProcessingInfo)
	assert.True(t, got.ProcessingInfo.Chunked)
	assert.Equal(t, 2, got.ProcessingInfo.TotalPieces)
	assert.Nil(t, got.ImagesAnalysis)
	assert.Nil(t, got.StructuredContent)
}

func TestMerge_SinglePieceKeepsShape(t *testing.T) {
	a := extract.Analysis{
		Summary:         "only",
		KeyTopics:       []string{"k"},
		ImportantPoints: []string{"p"},
		Insights:        []string{"i"},
		Recommendations: []string{"r"},
		ImagesAnalysis:  &extract.ImagesAnalysis{TotalImages: 1},
	}
	got := Merge([]extract.PieceResult{structured(0, a)}, extract.FormatStructuredJSON)

	assert.Equal(t, a.KeyTopics, got.KeyTopics)
	assert.Equal(t, a.ImportantPoints, got.ImportantPoints)
	assert.Equal(t, a.Insights, got.Insights)
	assert.Equal(t, a.Recommendations, got.Recommendations)
	assert.Equal(t, 1, got.ImagesAnalysis.TotalImages)
	assert.Contains(t, got.Summary, "only")
}

func TestMerge_TextFormats(t *testing.T) {
	got := Merge([]extract.PieceResult{
		{Index: 0, Result: &extract.Result{Content: "# A", Format: extract.FormatMarkdown}},
		{Index: 1, Result: &extract.Result{Content: "# B", Format: extract.FormatMarkdown}},
	}, extract.FormatMarkdown)

	assert.Nil(t, got.Analysis)
	assert.Equal(t, extract.FormatMarkdown, got.Format)
	assert.Equal(t, "Piece 1: # A\n\nPiece 2: # B", got.Content)
	assert.Equal(t, 2, got.ProcessingInfo.TotalPieces)
}
