package query

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Slot is a typed positional placeholder. Slot(0) is written {0} in template text.
type Slot int

// String returns the template spelling of the slot
func (s Slot) String() string {
	return "{" + strconv.Itoa(int(s)) + "}"
}

// segment is either literal text or a slot reference
type segment struct {
	text string
	slot Slot
	lit  bool
}

// CompiledTemplate is a parsed positional template
type CompiledTemplate struct {
	source   string
	segments []segment
	slots    int
}

// Slots returns the number of distinct slots. Expressions passed to Render must match it.
func (t *CompiledTemplate) Slots() int {
	return t.slots
}

// String returns the source text
func (t *CompiledTemplate) String() string {
	return t.source
}

// Render substitutes exprs into the slots. exprs[i] fills every {i}.
func (t *CompiledTemplate) Render(exprs []string) (string, error) {
	if len(exprs) != t.slots {
		return "", invalidf("template %q has %d slots, got %d expressions", t.source, t.slots, len(exprs))
	}
	var sb strings.Builder
	for _, seg := range t.segments {
		if seg.lit {
			sb.WriteString(seg.text)
		} else {
			sb.WriteString(exprs[seg.slot])
		}
	}
	return sb.String(), nil
}

const templateCacheSize = 256

var templateCache, _ = lru.New[string, *CompiledTemplate](templateCacheSize)

// ParseTemplate compiles a template such as "{0} OR ({1} AND {2})". Braces are
// escaped by doubling. Slot indices must cover 0..n-1 without gaps.
func ParseTemplate(src string) (*CompiledTemplate, error) {
	if t, ok := templateCache.Get(src); ok {
		return t, nil
	}

	t := &CompiledTemplate{source: src}
	seen := make(map[Slot]bool)
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String(), lit: true})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, invalidf("unclosed slot at offset %d in %q", i, src)
			}
			n, err := strconv.Atoi(strings.TrimSpace(src[i+1 : i+end]))
			if err != nil || n < 0 {
				return nil, invalidf("bad slot %q in %q", src[i:i+end+1], src)
			}
			flush()
			t.segments = append(t.segments, segment{slot: Slot(n)})
			seen[Slot(n)] = true
			i += end
		case c == '}':
			return nil, invalidf("unmatched '}' at offset %d in %q", i, src)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	for s := range seen {
		if int(s) >= len(seen) {
			return nil, invalidf("slot %s in %q leaves a gap", s, src)
		}
	}
	t.slots = len(seen)

	templateCache.Add(src, t)
	return t, nil
}
