package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// String renders the value in reader syntax where one exists.
func (v *Value) String() string {
	p := printer{seen: make(map[*Value]bool)}
	p.write(v, false, 0)
	return p.b.String()
}

// PlainString renders strings and characters without their delimiters, as
// used by string formatting and printing.
func (v *Value) PlainString() string {
	p := printer{seen: make(map[*Value]bool)}
	p.write(v, true, 0)
	return p.b.String()
}

// CharacterName renders a character in reader syntax.
func CharacterName(r rune) string {
	switch r {
	case '|':
		return "|bar|"
	case '\n':
		return "|newline|"
	case '\t':
		return "|tab|"
	default:
		return "|" + string(r) + "|"
	}
}

// FormatReal follows the C %g conversion.
func FormatReal(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

type printer struct {
	b    strings.Builder
	seen map[*Value]bool
}

func (p *printer) write(v *Value, plain bool, depth int) {
	if v == nil {
		p.b.WriteString("nil")
		return
	}
	switch v.kind {
	case KindNil:
		p.b.WriteString("nil")
	case KindBoolean:
		if v.boolean {
			p.b.WriteString("true")
		} else {
			p.b.WriteString("false")
		}
	case KindInteger:
		p.b.WriteString(strconv.FormatInt(int64(v.integer), 10))
	case KindReal:
		p.b.WriteString(FormatReal(v.real))
	case KindString:
		if plain {
			p.b.WriteString(v.text)
		} else {
			p.b.WriteString("[" + v.text + "]")
		}
	case KindCharacter:
		if plain {
			p.b.WriteRune(v.char)
		} else {
			p.b.WriteString(CharacterName(v.char))
		}
	case KindSymbol:
		p.b.WriteString(v.text)
	case KindError:
		p.b.WriteString("<error>: " + v.text)
	case KindVector:
		if p.enter(v) {
			return
		}
		p.b.WriteByte('(')
		for i, elem := range v.vector {
			if i > 0 {
				p.b.WriteByte(' ')
			}
			p.write(elem, false, depth)
		}
		p.b.WriteByte(')')
		p.leave(v)
	case KindHashMap:
		if p.enter(v) {
			return
		}
		p.b.WriteString("(hash-map")
		for i, entry := range v.hashMap.entries {
			if i == 0 {
				p.b.WriteByte(' ')
			} else {
				p.b.WriteString("\n          ")
			}
			p.write(entry.Key, false, depth)
			p.b.WriteByte(' ')
			p.write(entry.Value, false, depth)
		}
		p.b.WriteByte(')')
		p.leave(v)
	case KindEnvironment:
		if p.enter(v) {
			return
		}
		p.environment(v, depth)
		p.leave(v)
	case KindFunction:
		p.b.WriteString("<function>")
	case KindSpecial:
		p.b.WriteString("<special>")
	case KindBuiltin:
		p.b.WriteString("<builtin>")
	default:
		p.b.WriteString(v.kind.String())
	}
}

// enter reports a value already being printed, so cycles print as "...".
func (p *printer) enter(v *Value) bool {
	if p.seen[v] {
		p.b.WriteString("...")
		return true
	}
	p.seen[v] = true
	return false
}

func (p *printer) leave(v *Value) {
	delete(p.seen, v)
}

func (p *printer) environment(v *Value, depth int) {
	e := v.env
	indent := strings.Repeat("\t", depth)
	p.b.WriteString(indent)
	p.b.WriteString("---------- environment ----------\n")
	if e.enclosing != nil && e.enclosing != v {
		p.write(e.enclosing, false, depth+1)
	}
	entries := append([]HashEntry(nil), e.bindings.entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return Compare(entries[i].Key, entries[j].Key) < 0
	})
	keys := make([]string, len(entries))
	width := 0
	for i, entry := range entries {
		keys[i] = entry.Key.String()
		if len(keys[i]) > width {
			width = len(keys[i])
		}
	}
	for i, entry := range entries {
		fmt.Fprintf(&p.b, "%s%-*s -> ", indent, width, keys[i])
		p.write(entry.Value, false, depth+1)
		p.b.WriteByte('\n')
	}
	p.b.WriteString(indent)
	p.b.WriteString("---------------------------------\n")
}
