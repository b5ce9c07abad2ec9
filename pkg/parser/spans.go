package parser

// Range is an inclusive start/end pair.
type Range struct {
	Start int
	End   int
}

// Span locates a token or parsed value as line, column and character-offset
// ranges. Lines and columns are 1-based, offsets 0-based.
type Span struct {
	Lines   Range
	Columns Range
	Offsets Range
}

func isZeroSpan(span Span) bool {
	return span.Lines.Start == 0 && span.Columns.Start == 0
}

// merge covers both spans, assuming a starts before b.
func merge(a, b Span) Span {
	if isZeroSpan(a) {
		return b
	}
	if isZeroSpan(b) {
		return a
	}
	return Span{
		Lines:   Range{Start: a.Lines.Start, End: b.Lines.End},
		Columns: Range{Start: a.Columns.Start, End: b.Columns.End},
		Offsets: Range{Start: a.Offsets.Start, End: b.Offsets.End},
	}
}
