package runtime

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
)

// Equal compares by content for atoms and by identity for everything else;
// reference payloads are never shared between two values.
// Integers and reals compare numerically across kinds.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsNumber() {
		if !b.IsNumber() {
			return false
		}
		if a.kind == KindInteger && b.kind == KindInteger {
			return a.integer == b.integer
		}
		return a.AsFloat() == b.AsFloat()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBoolean:
		return a.boolean == b.boolean
	case KindString, KindSymbol, KindError:
		return a.text == b.text
	case KindCharacter:
		return a.char == b.char
	default:
		return a == b
	}
}

// Less orders numbers numerically and text and characters lexically. ok is
// false when the two values have no ordering.
func Less(a, b *Value) (less bool, ok bool) {
	if a.IsNumber() {
		if !b.IsNumber() {
			return false, false
		}
		if a.kind == KindInteger && b.kind == KindInteger {
			return a.integer < b.integer, true
		}
		return a.AsFloat() < b.AsFloat(), true
	}
	if a.kind != b.kind {
		return false, false
	}
	switch a.kind {
	case KindBoolean:
		return !a.boolean && b.boolean, true
	case KindString, KindSymbol, KindError:
		return a.text < b.text, true
	case KindCharacter:
		return a.char < b.char, true
	default:
		return false, false
	}
}

// Compare gives a total order: first by kind, then by content (identity order
// by uid for reference kinds). Used to sort environment keys.
func Compare(a, b *Value) int {
	if a.kind != b.kind {
		return int(a.kind) - int(b.kind)
	}
	switch a.kind {
	case KindNil:
		return 0
	case KindBoolean:
		return boolInt(a.boolean) - boolInt(b.boolean)
	case KindInteger:
		return cmpOrdered(a.integer, b.integer)
	case KindReal:
		return cmpOrdered(a.real, b.real)
	case KindString, KindSymbol, KindError:
		return strings.Compare(a.text, b.text)
	case KindCharacter:
		return cmpOrdered(a.char, b.char)
	default:
		return cmpOrdered(a.uid, b.uid)
	}
}

// Hash is consistent with Equal.
func Hash(v *Value) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	switch v.kind {
	case KindNil:
		h.Write([]byte{0})
	case KindBoolean:
		h.Write([]byte{1, byte(boolInt(v.boolean))})
	case KindInteger, KindReal:
		// Integers hash through float64 so that 1 and 1.0 share a bucket.
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.AsFloat()))
		h.Write([]byte{2})
		h.Write(buf[:])
	case KindString, KindSymbol, KindError:
		h.Write([]byte{byte(v.kind)})
		h.Write([]byte(v.text))
	case KindCharacter:
		binary.LittleEndian.PutUint32(buf[:4], uint32(v.char))
		h.Write([]byte{byte(v.kind)})
		h.Write(buf[:4])
	default:
		binary.LittleEndian.PutUint64(buf[:], v.uid)
		h.Write([]byte{byte(v.kind)})
		h.Write(buf[:])
	}
	return h.Sum64()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T ~int32 | ~uint64 | ~float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
