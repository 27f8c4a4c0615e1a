package doctree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docanalyze/internal/apperr"
)

func sampleDoc() *Document {
	return &Document{
		Meta: Metadata{Title: "T", Source: "report.pdf", ContentType: "application/pdf"},
		Sections: []Section{
			{Heading: "Intro", Chunks: []Chunk{{Text: "a"}}},
			{Chunks: []Chunk{{Text: "b", AssociatedImages: []string{"img1", "img2"}}}},
		},
	}
}

func TestSerialize_Layout(t *testing.T) {
	s := Serialize(sampleDoc())

	want := "Title: T\nSource: report.pdf\nContent Type: application/pdf" +
		"\n\n--- Section 1 ---\nHeading: Intro\nChunk 1: a" +
		"\n\n--- Section 2 ---\nChunk 1: b\n  Associated images: img1, img2"
	assert.Equal(t, want, s.Text)
	require.Len(t, s.SectionOffsets, 2)
	assert.True(t, strings.HasPrefix(s.Text[s.SectionOffsets[0]:], "\n\n--- Section 1 ---"))
	assert.True(t, strings.HasPrefix(s.Text[s.SectionOffsets[1]:], "\n\n--- Section 2 ---"))
}

func TestSerialize_OffsetsMatchScan(t *testing.T) {
	docs := []*Document{
		sampleDoc(),
		{Sections: []Section{{Chunks: []Chunk{{Text: "only"}}}, {Chunks: []Chunk{{Text: "two"}}}}},
	}
	for _, d := range docs {
		s := Serialize(d)
		assert.Equal(t, s.SectionOffsets, FindSectionOffsets(s.Text))
	}
}

func TestSerialize_FirstSectionWithoutPreamble(t *testing.T) {
	s := Serialize(&Document{Sections: []Section{{Chunks: []Chunk{{Text: "x"}}}}})
	assert.Equal(t, "\n--- Section 1 ---\nChunk 1: x", s.Text)
	assert.Equal(t, []int{0}, s.SectionOffsets)
}

func TestSerialize_EscapesMarkerLikeText(t *testing.T) {
	doc := &Document{Sections: []Section{{Chunks: []Chunk{{Text: "start\n--- Section 7 ---\nend"}}}}}
	s := Serialize(doc)

	assert.Contains(t, s.Text, "\n\\--- Section 7 ---\n")
	assert.Equal(t, []int{0}, FindSectionOffsets(s.Text))
}

func TestSerialize_EscapesMarkersInEveryField(t *testing.T) {
	marker := "x\n--- Section 9 ---\ny"
	doc := &Document{
		Meta:   Metadata{ContentType: marker},
		Images: []Image{{ID: marker, PageNumber: 1}},
		Sections: []Section{
			{
				Images: []Image{{ID: marker}},
				Chunks: []Chunk{{Text: "body", AssociatedImages: []string{marker}}},
			},
			{Chunks: []Chunk{{Text: "second"}}},
		},
	}
	s := Serialize(doc)

	require.Len(t, s.SectionOffsets, 2)
	assert.Equal(t, s.SectionOffsets, FindSectionOffsets(s.Text))
	assert.NotContains(t, s.Text, "\n--- Section 9 ---")
}

func TestSerialize_ImagesOverview(t *testing.T) {
	long := strings.Repeat("x", 150)
	doc := &Document{
		Images: []Image{
			{ID: "i1", PageNumber: 2, Dimensions: &Dimensions{Width: 640, Height: 480}, AssociatedText: long},
			{ID: "i2", PageNumber: 3, AssociatedText: "short"},
		},
		Sections: []Section{{
			Images: []Image{{ID: "i1"}, {ID: "i2", AssociatedText: "caption"}},
			Chunks: []Chunk{{Text: "body"}},
		}},
	}
	s := Serialize(doc)

	assert.True(t, strings.HasPrefix(s.Text, "\nDocument contains 2 images:\n"))
	assert.Contains(t, s.Text, "- Image i1 on page 2 (640x480) - Associated text: "+strings.Repeat("x", 100)+"...\n")
	assert.Contains(t, s.Text, "- Image i2 on page 3 - Associated text: short\n")
	assert.Contains(t, s.Text, "Images in this section: 2\n  - i1: No associated text\n  - i2: caption")
	assert.Equal(t, s.SectionOffsets, FindSectionOffsets(s.Text))
}

func TestSerialize_EmptyDocument(t *testing.T) {
	s := Serialize(&Document{})
	assert.Empty(t, s.Text)
	assert.Empty(t, s.SectionOffsets)
}

func TestSerialize_Deterministic(t *testing.T) {
	assert.Equal(t, Serialize(sampleDoc()), Serialize(sampleDoc()))
}

func TestImagesByPage(t *testing.T) {
	doc := &Document{Images: []Image{{ID: "a", PageNumber: 1}, {ID: "b", PageNumber: 2}, {ID: "c", PageNumber: 1}}}
	got := doc.ImagesByPage(1)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Nil(t, doc.SectionImages(5))
}

func TestDecode_Valid(t *testing.T) {
	in := `{"schema_id":"panparsex/v1","meta":{"source":"x.txt"},
		"sections":[{"heading":"H","chunks":[{"text":"hello","order":0}]}],
		"images":[{"image_id":"img1","page_number":1,"dimensions":{"width":10,"height":20}}]}`
	doc, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "x.txt", doc.Meta.Source)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "hello", doc.Sections[0].Chunks[0].Text)
	assert.Equal(t, 20, doc.Images[0].Dimensions.Height)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"missing chunks":  `{"sections":[{"heading":"H"}]}`,
		"wrong text type": `{"sections":[{"chunks":[{"text":5}]}]}`,
		"unknown schema":  `{"schema_id":"other/v2","sections":[]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		})
	}
}
