package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Converter translates a field value to and from its stored form
type Converter interface {
	// ToDB returns the value bound as a statement parameter
	ToDB(v any) (any, error)
	// FromDB decodes src into dst, which is the addressable field value
	FromDB(src any, dst reflect.Value) error
}

var (
	convertersMu sync.RWMutex
	converters   = map[string]Converter{
		"json":    JSONConverter{},
		"msgpack": MsgpackConverter{},
	}
)

// RegisterConverter makes a converter available to the `converter:` tag option
func RegisterConverter(name string, c Converter) {
	convertersMu.Lock()
	defer convertersMu.Unlock()
	converters[strings.ToLower(name)] = c
}

// LookupConverter returns the converter registered under name
func LookupConverter(name string) (Converter, bool) {
	convertersMu.RLock()
	defer convertersMu.RUnlock()
	c, ok := converters[strings.ToLower(name)]
	return c, ok
}

// JSONConverter stores a field as JSON text
type JSONConverter struct{}

// ToDB implements Converter
func (JSONConverter) ToDB(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// FromDB implements Converter
func (JSONConverter) FromDB(src any, dst reflect.Value) error {
	raw, err := rawBytes(src)
	if err != nil || raw == nil {
		return err
	}
	return json.Unmarshal(raw, dst.Addr().Interface())
}

// MsgpackConverter stores a field as a msgpack blob
type MsgpackConverter struct{}

// ToDB implements Converter
func (MsgpackConverter) ToDB(v any) (any, error) {
	return msgpack.Marshal(v)
}

// FromDB implements Converter
func (MsgpackConverter) FromDB(src any, dst reflect.Value) error {
	raw, err := rawBytes(src)
	if err != nil || raw == nil {
		return err
	}
	return msgpack.Unmarshal(raw, dst.Addr().Interface())
}

func rawBytes(src any) ([]byte, error) {
	switch s := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("cannot decode %T", src)
	}
}
