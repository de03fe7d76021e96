package dialect

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParamStyle is the placeholder syntax a driver understands
type ParamStyle int

const (
	// StyleNamed renders @name and binds sql.Named values
	StyleNamed ParamStyle = iota
	// StyleDollar renders $1, $2, ... in bind order
	StyleDollar
	// StyleQuestion renders ? in bind order
	StyleQuestion
)

// Params is the parameter bag shared by every clause of one statement.
// Names are made unique on Add, so SET and WHERE may bind the same column.
type Params struct {
	style  ParamStyle
	names  []string
	values []any
	used   map[string]struct{}
}

// NewParams returns an empty bag in the given style
func NewParams(style ParamStyle) *Params {
	return &Params{style: style, used: make(map[string]struct{})}
}

// Style returns the placeholder style of the bag
func (p *Params) Style() ParamStyle {
	return p.style
}

// Add binds value under a unique name derived from name and returns the reference
// to embed in the SQL text
func (p *Params) Add(name string, value any) string {
	name = sanitizeParamName(name)
	unique := name
	for i := 1; ; i++ {
		if _, taken := p.used[strings.ToLower(unique)]; !taken {
			break
		}
		unique = name + "_" + strconv.Itoa(i)
	}
	p.used[strings.ToLower(unique)] = struct{}{}
	p.names = append(p.names, unique)
	p.values = append(p.values, value)
	return p.ref(unique, len(p.values))
}

func (p *Params) ref(name string, position int) string {
	switch p.style {
	case StyleDollar:
		return "$" + strconv.Itoa(position)
	case StyleQuestion:
		return "?"
	default:
		return "@" + name
	}
}

// Len returns the number of bound values
func (p *Params) Len() int {
	return len(p.values)
}

// Names returns the bound names in bind order
func (p *Params) Names() []string {
	return append([]string(nil), p.names...)
}

// Value returns the value bound under the exact name
func (p *Params) Value(name string) (any, bool) {
	for i, n := range p.names {
		if n == name {
			return p.values[i], true
		}
	}
	return nil, false
}

// Args returns the driver arguments in bind order
func (p *Params) Args() []any {
	args := make([]any, len(p.values))
	for i, v := range p.values {
		if p.style == StyleNamed {
			args[i] = sql.Named(p.names[i], v)
		} else {
			args[i] = v
		}
	}
	return args
}

// Bind rewrites the @name references in template to this bag's style, binding each
// from values. Every referenced name must be present in values.
func (p *Params) Bind(template string, values map[string]any) (string, error) {
	lookup := make(map[string]any, len(values))
	for k, v := range values {
		lookup[strings.ToLower(strings.TrimPrefix(k, "@"))] = v
	}

	var sb strings.Builder
	seen := make(map[string]string)
	runes := []rune(template)
	inQuote := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\'' {
			inQuote = !inQuote
		}
		if r != '@' || inQuote || i+1 >= len(runes) || !isParamRune(runes[i+1]) || (i > 0 && runes[i-1] == '@') {
			sb.WriteRune(r)
			continue
		}
		j := i + 1
		for j < len(runes) && isParamRune(runes[j]) {
			j++
		}
		name := string(runes[i+1 : j])
		key := strings.ToLower(name)
		value, ok := lookup[key]
		if !ok {
			return "", fmt.Errorf("template parameter @%s has no value", name)
		}
		ref, reuse := seen[key]
		if !reuse || p.style != StyleNamed {
			ref = p.Add(name, value)
			seen[key] = ref
		}
		sb.WriteString(ref)
		i = j - 1
	}
	return sb.String(), nil
}

func isParamRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func sanitizeParamName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if isParamRune(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "p"
	}
	return sb.String()
}
