package interpreter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// FindFromValue searches key from container. Text containers and vectors
// give a vector of the indices where key occurs; hash maps and
// environments give the bound value or nil.
func (i *Interpreter) FindFromValue(container, key *runtime.Value) *runtime.Value {
	s := i.store
	switch container.Kind() {
	case runtime.KindString, runtime.KindSymbol:
		var needle string
		switch key.Kind() {
		case runtime.KindCharacter:
			needle = string(key.Char())
		case runtime.KindString, runtime.KindSymbol:
			needle = key.Text()
		case runtime.KindInteger:
			needle = fmt.Sprintf("%d", key.Int())
		case runtime.KindReal:
			needle = runtime.FormatReal(key.Real())
		default:
			return s.NewErrorf("Type '%s' cannot be searched from type '%s'", key.Kind(), container.Kind())
		}
		return i.indexVector(textIndices(container.Text(), needle))
	case runtime.KindVector:
		var found []int
		for k, elem := range container.Elements() {
			if runtime.Equal(elem, key) {
				found = append(found, k)
			}
		}
		return i.indexVector(found)
	case runtime.KindHashMap:
		if v, ok := container.HashMap().Get(key); ok {
			return v
		}
		return s.NewNil()
	case runtime.KindEnvironment:
		if v, ok := container.Env().Get(key); ok {
			return v
		}
		return s.NewNil()
	default:
		return s.NewErrorf("'find' doesn't support search from type '%s'", container.Kind())
	}
}

// textIndices lists the rune offsets of every occurrence of needle.
func textIndices(text, needle string) []int {
	if needle == "" {
		return nil
	}
	var found []int
	offset := 0
	for {
		at := strings.Index(text[offset:], needle)
		if at < 0 {
			return found
		}
		found = append(found, utf8.RuneCountInString(text[:offset+at]))
		_, size := utf8.DecodeRuneInString(text[offset+at:])
		offset += at + size
	}
}

func (i *Interpreter) indexVector(indices []int) *runtime.Value {
	result := i.store.NewVector()
	defer i.store.Roots().Protect(result)()
	for _, index := range indices {
		result.Push(i.store.NewInteger(int32(index)))
	}
	return result
}
