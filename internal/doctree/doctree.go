package doctree

// SchemaID identifies the document layout produced by the parsing subsystem.
const SchemaID = "panparsex/v1"

// Document is a parsed document: metadata plus sections in reading order.
type Document struct {
	SchemaID string    `json:"schema_id,omitempty"`
	Meta     Metadata  `json:"meta"`
	Sections []Section `json:"sections"`
	Images   []Image   `json:"images,omitempty"` // All images in the document
}

// Metadata describes where the document came from.
type Metadata struct {
	Source      string         `json:"source"`
	ContentType string         `json:"content_type,omitempty"`
	Encoding    string         `json:"encoding,omitempty"`
	URL         string         `json:"url,omitempty"`
	Path        string         `json:"path,omitempty"`
	Title       string         `json:"title,omitempty"`
	Language    string         `json:"language,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Section is an ordered group of text chunks with an optional heading.
type Section struct {
	Heading string         `json:"heading,omitempty"`
	Chunks  []Chunk        `json:"chunks"`
	Meta    map[string]any `json:"meta,omitempty"`
	Images  []Image        `json:"images,omitempty"` // Images in this section
}

// Chunk is one text block of a section.
type Chunk struct {
	Text             string         `json:"text"`
	Order            int            `json:"order"`
	ID               string         `json:"id,omitempty"`
	Meta             map[string]any `json:"meta,omitempty"`
	AssociatedImages []string       `json:"associated_images,omitempty"` // Image IDs
}

// Image describes an image found in the source document.
type Image struct {
	ID              string             `json:"image_id"`
	PageNumber      int                `json:"page_number"`
	Position        map[string]float64 `json:"position,omitempty"` // x, y, width, height
	FilePath        string             `json:"file_path,omitempty"`
	FileSize        int64              `json:"file_size,omitempty"`
	Format          string             `json:"format,omitempty"`
	Dimensions      *Dimensions        `json:"dimensions,omitempty"`
	AssociatedText  string             `json:"associated_text,omitempty"` // Text near the image
	ConfidenceScore float64            `json:"confidence_score,omitempty"`
}

// Dimensions is an image size in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImagesByPage returns all document images on the given page.
func (d *Document) ImagesByPage(page int) []Image {
	var out []Image
	for _, img := range d.Images {
		if img.PageNumber == page {
			out = append(out, img)
		}
	}
	return out
}

// SectionImages returns the images of section i, or nil if i is out of range.
func (d *Document) SectionImages(i int) []Image {
	if i < 0 || i >= len(d.Sections) {
		return nil
	}
	return d.Sections[i].Images
}
