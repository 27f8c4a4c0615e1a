package doctree

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxImageTextRunes caps associated image text in the images overview.
const maxImageTextRunes = 100

// markerLine matches a section boundary line. Text lines that would match are
// escaped during serialization, so a match is always a real boundary.
var markerLine = regexp.MustCompile(`(?m)^--- Section \d+ ---$`)

// Serialized is the flattened text of a document. SectionOffsets holds the byte
// offset in Text where each section begins, in section order.
type Serialized struct {
	Text           string
	SectionOffsets []int
}

// SectionMarker returns the boundary line for section i (0-based).
func SectionMarker(i int) string {
	return fmt.Sprintf("--- Section %d ---", i+1)
}

// Serialize flattens doc into one text: metadata lines, an images overview, then
// every section introduced by its boundary marker, chunks in order.
func Serialize(doc *Document) Serialized {
	var b strings.Builder
	var offsets []int
	first := true
	line := func(s string) {
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(s)
	}

	if doc.Meta.Title != "" {
		line("Title: " + escapeMarkers(doc.Meta.Title))
	}
	if doc.Meta.Source != "" {
		line("Source: " + escapeMarkers(doc.Meta.Source))
	}
	if doc.Meta.ContentType != "" {
		line("Content Type: " + escapeMarkers(doc.Meta.ContentType))
	}

	if len(doc.Images) > 0 {
		line(fmt.Sprintf("\nDocument contains %d images:", len(doc.Images)))
		for _, img := range doc.Images {
			info := fmt.Sprintf("- Image %s on page %d", escapeMarkers(img.ID), img.PageNumber)
			if img.Dimensions != nil {
				info += fmt.Sprintf(" (%dx%d)", img.Dimensions.Width, img.Dimensions.Height)
			}
			if img.AssociatedText != "" {
				info += " - Associated text: " + escapeMarkers(truncateRunes(img.AssociatedText, maxImageTextRunes))
			}
			line(info)
		}
	}

	for i, sec := range doc.Sections {
		offsets = append(offsets, b.Len())
		line(serializeSection(i, sec))
	}

	return Serialized{Text: b.String(), SectionOffsets: offsets}
}

func serializeSection(i int, sec Section) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(SectionMarker(i))
	if sec.Heading != "" {
		sb.WriteString("\nHeading: ")
		sb.WriteString(escapeMarkers(sec.Heading))
	}
	if len(sec.Images) > 0 {
		fmt.Fprintf(&sb, "\nImages in this section: %d", len(sec.Images))
		for _, img := range sec.Images {
			text := img.AssociatedText
			if text == "" {
				text = "No associated text"
			}
			fmt.Fprintf(&sb, "\n  - %s: %s", escapeMarkers(img.ID), escapeMarkers(text))
		}
	}
	for j, ch := range sec.Chunks {
		fmt.Fprintf(&sb, "\nChunk %d: %s", j+1, escapeMarkers(ch.Text))
		if len(ch.AssociatedImages) > 0 {
			sb.WriteString("\n  Associated images: ")
			sb.WriteString(escapeMarkers(strings.Join(ch.AssociatedImages, ", ")))
		}
	}
	return sb.String()
}

// FindSectionOffsets recovers section offsets from serialized text by scanning
// for marker lines. For Serialize output it equals Serialized.SectionOffsets.
func FindSectionOffsets(text string) []int {
	locs := markerLine.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	offsets := make([]int, 0, len(locs))
	for _, loc := range locs {
		// Each section starts at the join newline before its own leading newline.
		off := loc[0] - 2
		if off < 0 {
			off = 0
		}
		offsets = append(offsets, off)
	}
	return offsets
}

func escapeMarkers(s string) string {
	if !strings.Contains(s, "--- Section ") {
		return s
	}
	return markerLine.ReplaceAllString(s, `\$0`)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
