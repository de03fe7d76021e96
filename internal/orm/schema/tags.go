package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// TagName is the struct tag read for declarative column metadata
const TagName = "orm"

// parseTag applies an orm tag such as `column:Uid;explicitkey;length:36;order:1` to col.
// A tag of "-" marks the field ignored.
func parseTag(tag string, col *Column) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	if tag == "-" {
		col.Flags |= FlagIgnored
		return nil
	}

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "column":
			if value == "" {
				return fmt.Errorf("field %s: empty column name", col.Field)
			}
			col.Name = value
		case "order":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("field %s: invalid order %q", col.Field, value)
			}
			col.Order = n
		case "type":
			col.TypeName = value
		case "length", "size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("field %s: invalid length %q", col.Field, value)
			}
			col.Length = n
		case "default":
			if !hasValue {
				return fmt.Errorf("field %s: default needs a value", col.Field)
			}
			col.Default = value
		case "converter":
			conv, ok := LookupConverter(value)
			if !ok {
				return fmt.Errorf("field %s: unknown converter %q", col.Field, value)
			}
			col.Converter = conv
		default:
			flag, ok := flagByName(key)
			if !ok {
				return fmt.Errorf("field %s: unknown tag option %q", col.Field, key)
			}
			col.Flags |= flag
		}
	}
	return nil
}

func flagByName(name string) (Flag, bool) {
	switch name {
	case "pk", "primarykey":
		return FlagKey, true
	case "autoincrement", "identity":
		return FlagAutoIncrement, true
	case "notnull":
		return FlagRequired, true
	case "writedisabled":
		return FlagReadOnly, true
	}
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, true
		}
	}
	return 0, false
}
