package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a dialect instance
type Factory func(Options) Dialect

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
	drivers    = make(map[string]string) // database/sql driver name -> dialect name
)

// Register adds a dialect factory under name. driverNames are the database/sql
// driver names that select this dialect in ForDriver.
// Called by dialect implementations in their init() functions.
func Register(name string, factory Factory, driverNames ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	registry[name] = factory
	for _, d := range driverNames {
		drivers[strings.ToLower(d)] = name
	}
}

// Get builds the dialect registered under name
func Get(name string, opts ...Option) (Dialect, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownDialectError{Name: name, Available: Names()}
	}
	return factory(buildOptions(opts)), nil
}

// ForDriver builds the dialect that serves a database/sql driver name
func ForDriver(driverName string, opts ...Option) (Dialect, error) {
	registryMu.RLock()
	name, ok := drivers[strings.ToLower(driverName)]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownDialectError{Name: driverName, Available: Names(), Driver: true}
	}
	return Get(name, opts...)
}

// Names returns all registered dialect names (sorted)
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDialectError is returned when no dialect matches a name or driver
type UnknownDialectError struct {
	Name      string
	Available []string
	Driver    bool
}

func (e *UnknownDialectError) Error() string {
	kind := "dialect"
	if e.Driver {
		kind = "driver"
	}
	return fmt.Sprintf("unknown %s %q (available dialects: %s)", kind, e.Name, strings.Join(e.Available, ", "))
}
