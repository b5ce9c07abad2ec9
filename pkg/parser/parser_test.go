package parser

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

func newStore() *runtime.Store {
	return runtime.NewStore(runtime.Collector{}, nil)
}

func parseOne(t *testing.T, src string) *runtime.Value {
	t.Helper()
	values, err := ParseAll(newStore(), src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	if len(values) != 1 {
		t.Fatalf("parse %q: got %d values, want 1", src, len(values))
	}
	return values[0]
}

func TestParseAtoms(t *testing.T) {
	cases := []struct {
		src  string
		kind runtime.Kind
		want string
	}{
		{"42", runtime.KindInteger, "42"},
		{"-7", runtime.KindInteger, "-7"},
		{"3.25", runtime.KindReal, "3.25"},
		{"[hello world]", runtime.KindString, "[hello world]"},
		{"|a|", runtime.KindCharacter, "|a|"},
		{"|bar|", runtime.KindCharacter, "|bar|"},
		{"|41|", runtime.KindCharacter, "|A|"},
		{"true", runtime.KindBoolean, "true"},
		{"false", runtime.KindBoolean, "false"},
		{"nil", runtime.KindNil, "nil"},
		{"starts-with?", runtime.KindSymbol, "starts-with?"},
		{"-", runtime.KindSymbol, "-"},
		{"...", runtime.KindSymbol, "..."},
	}
	for _, tc := range cases {
		v := parseOne(t, tc.src)
		if v.Kind() != tc.kind {
			t.Fatalf("parse %q: kind %s, want %s", tc.src, v.Kind(), tc.kind)
		}
		if got := v.String(); got != tc.want {
			t.Fatalf("parse %q: %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestParseStringWithEmbeddedCharacters(t *testing.T) {
	v := parseOne(t, "[a|newline|b|5d|]")
	if v.Text() != "a\nb]" {
		t.Fatalf("string = %q", v.Text())
	}
}

func TestParseNestedFormsAndQuote(t *testing.T) {
	v := parseOne(t, "(define x [doc] '(1 (2 3)))")
	if got := v.String(); got != "(define x [doc] (quote (1 (2 3))))" {
		t.Fatalf("form = %q", got)
	}
}

func TestParseSkipsComments(t *testing.T) {
	values, err := ParseAll(newStore(), "; line comment\n1 #! multi\nline !# 2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(values) != 2 || values[0].Int() != 1 || values[1].Int() != 2 {
		t.Fatalf("values = %v", values)
	}
}

func TestParseIncompleteInput(t *testing.T) {
	for _, src := range []string{"(+ 1", "[abc", "|a", "#! open", "'", "(a (b)"} {
		_, err := ParseAll(newStore(), src)
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("parse %q: expected ErrIncomplete, got %v", src, err)
		}
	}
}

func TestParseMalformedNumbers(t *testing.T) {
	cases := map[string]string{
		"1.2.3":       "Number can contain only one '.' character",
		"1-2":         "Number can have '-' character only in the beginning",
		"12a":         "Number cannot contain character 'a'",
		"1.":          "Character '.' cannot end a number",
		".5":          "Character '.' cannot start a number",
		"|zz|":        "Unknown character constant |zz|",
		"||":          "Character cannot be empty: ||",
		"[a]b":        "After last ']' of string there must be dern delimiter",
		")":           "Unexpected ')'",
		"|123456789|": "Number of hex digits (9) in character definition may not be larger than eight",
	}
	for src, want := range cases {
		_, err := ParseAll(newStore(), src)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("parse %q: expected SyntaxError, got %v", src, err)
		}
		if errors.Is(err, ErrIncomplete) {
			t.Fatalf("parse %q: unexpected ErrIncomplete", src)
		}
		if !strings.Contains(se.Message, want) {
			t.Fatalf("parse %q: message %q, want %q", src, se.Message, want)
		}
	}
}

func TestParserRecordsSpans(t *testing.T) {
	store := newStore()
	p := New(store, "\n  (a\n b)")
	v, err := p.Next()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	span, ok := p.SpanOf(v)
	if !ok {
		t.Fatalf("missing span")
	}
	if span.Lines != (Range{Start: 2, End: 3}) || span.Columns.Start != 3 || span.Offsets.Start != 3 {
		t.Fatalf("span = %+v", span)
	}
	if _, err := p.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestParseKeepsRootStackBalanced(t *testing.T) {
	store := runtime.NewStore(runtime.Collector{TriggerLimit: 2}, nil)
	p := New(store, "((1 2 3) [x] (4 (5 6)) '7)")
	v, err := p.Next()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if store.Roots().Len() != 0 {
		t.Fatalf("root stack length = %d", store.Roots().Len())
	}
	if got := v.String(); got != "((1 2 3) [x] (4 (5 6)) (quote 7))" {
		t.Fatalf("value damaged by collection: %q", got)
	}
}
