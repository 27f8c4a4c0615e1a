package chunker

import (
	"strings"

	"github.com/dgallion1/docanalyze/internal/apperr"
	"github.com/dgallion1/docanalyze/internal/doctree"
)

// Split levels, tried in order when a unit exceeds the budget.
const (
	levelSection = iota
	levelParagraph
	levelLine
	levelSentence
	levelForced
)

const (
	paragraphSep = "\n\n"
	lineSep      = "\n"
	sentenceSep  = ". "
)

// Piece is one contiguous slice of serialized content. Start and End are byte
// offsets into the serialized text. Overflow marks a piece that could not be
// split further and exceeds the budget.
type Piece struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Text     string `json:"-"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Tokens   int    `json:"tokens"`
	Overflow bool   `json:"overflow,omitempty"`
}

// Chunker splits serialized documents into budget-sized pieces.
type Chunker struct {
	Counter Counter
}

type span struct {
	start, end int
}

type segment struct {
	span
	overflow bool
}

// Split cuts s into ordered pieces of at most budget tokens, preferring section
// boundaries, then paragraphs, then lines, then sentences. A sentence that still exceeds the
// budget is emitted whole with Overflow set. Concatenating the pieces' text
// reproduces s.Text exactly.
func (c *Chunker) Split(s doctree.Serialized, budget int) ([]Piece, error) {
	if budget <= 0 {
		return nil, apperr.Configf("chunk budget %d is not positive", budget)
	}
	text := s.Text
	if text == "" {
		return nil, nil
	}
	if n := c.Counter.Count(text); n <= budget {
		return []Piece{{Index: 0, Total: 1, Text: text, Start: 0, End: len(text), Tokens: n}}, nil
	}

	units, err := sectionUnits(s)
	if err != nil {
		return nil, err
	}
	var segs []segment
	if len(units) == 1 {
		segs = c.splitUnit(text, units[0], budget, levelParagraph)
	} else {
		segs = c.pack(text, units, budget, levelSection)
	}

	pieces := make([]Piece, len(segs))
	for i, sg := range segs {
		body := text[sg.start:sg.end]
		pieces[i] = Piece{
			Index:    i,
			Total:    len(segs),
			Text:     body,
			Start:    sg.start,
			End:      sg.end,
			Tokens:   c.Counter.Count(body),
			Overflow: sg.overflow,
		}
	}
	if err := checkContiguous(pieces, len(text)); err != nil {
		return nil, err
	}
	return pieces, nil
}

// pack accumulates units into segments, flushing when the next unit would push
// the combined text past budget. The combined text is counted whole since
// counters need not be additive. Units larger than budget alone are split at
// the next level.
func (c *Chunker) pack(text string, units []span, budget, level int) []segment {
	var out []segment
	cur := span{start: -1}

	flush := func() {
		if cur.start >= 0 {
			out = append(out, segment{span: cur})
		}
		cur = span{start: -1}
	}

	for _, u := range units {
		n := c.Counter.Count(text[u.start:u.end])
		if n > budget {
			flush()
			out = append(out, c.splitUnit(text, u, budget, level+1)...)
			continue
		}
		if cur.start >= 0 && c.Counter.Count(text[cur.start:u.end]) > budget {
			flush()
		}
		if cur.start < 0 {
			cur = u
		} else {
			cur.end = u.end
		}
	}
	flush()
	return out
}

// splitUnit breaks an oversized unit at the given level, falling through to
// finer levels when the unit has no separator of the current kind.
func (c *Chunker) splitUnit(text string, u span, budget, level int) []segment {
	for ; level < levelForced; level++ {
		sep := paragraphSep
		switch level {
		case levelLine:
			sep = lineSep
		case levelSentence:
			sep = sentenceSep
		}
		subs := mergeBlank(text, splitAfter(text, u, sep))
		if len(subs) > 1 {
			return c.pack(text, subs, budget, level)
		}
	}
	return []segment{{span: u, overflow: true}}
}

// sectionUnits cuts the text at the recorded section offsets. Text before the
// first section becomes its own unit.
func sectionUnits(s doctree.Serialized) ([]span, error) {
	n := len(s.Text)
	if len(s.SectionOffsets) == 0 {
		return []span{{0, n}}, nil
	}
	var units []span
	prev := 0
	for i, off := range s.SectionOffsets {
		if off < prev || off > n || (i > 0 && off == prev) {
			return nil, apperr.Invariantf("section offset %d at index %d is out of order", off, i)
		}
		if off > prev {
			units = append(units, span{prev, off})
		}
		prev = off
	}
	if prev < n {
		units = append(units, span{prev, n})
	}
	return units, nil
}

// splitAfter cuts u after each occurrence of sep, keeping the separator with the
// preceding part.
func splitAfter(text string, u span, sep string) []span {
	var parts []span
	pos := u.start
	for pos < u.end {
		i := strings.Index(text[pos:u.end], sep)
		if i < 0 {
			break
		}
		end := pos + i + len(sep)
		parts = append(parts, span{pos, end})
		pos = end
	}
	if pos < u.end {
		parts = append(parts, span{pos, u.end})
	}
	return parts
}

// mergeBlank folds whitespace-only parts into their neighbour so no piece is
// made of whitespace alone.
func mergeBlank(text string, parts []span) []span {
	var out []span
	pendingStart := -1
	for _, p := range parts {
		if strings.TrimSpace(text[p.start:p.end]) == "" {
			if len(out) > 0 {
				out[len(out)-1].end = p.end
			} else if pendingStart < 0 {
				pendingStart = p.start
			}
			continue
		}
		if pendingStart >= 0 {
			p.start = pendingStart
			pendingStart = -1
		}
		out = append(out, p)
	}
	if pendingStart >= 0 {
		// Only whitespace; keep it as one part.
		out = append(out, span{pendingStart, parts[len(parts)-1].end})
	}
	return out
}

func checkContiguous(pieces []Piece, n int) error {
	pos := 0
	for _, p := range pieces {
		if p.Start != pos || p.End <= p.Start {
			return apperr.Invariantf("piece %d spans [%d,%d), expected start %d", p.Index, p.Start, p.End, pos)
		}
		pos = p.End
	}
	if pos != n {
		return apperr.Invariantf("pieces cover %d of %d bytes", pos, n)
	}
	return nil
}
