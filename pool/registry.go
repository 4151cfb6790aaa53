package pool

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

var registry = struct {
	sync.RWMutex
	handlers map[string]any
}{handlers: make(map[string]any)}

// Register makes a handler available to WithWorkerFile under name.
// It panics if name is empty, h is nil or name is already taken.
func Register[T, R any](name string, h HandlerFunc[T, R]) {
	if name == "" {
		panic("pool: Register with empty name")
	}
	if h == nil {
		panic("pool: Register handler is nil")
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.handlers[name]; dup {
		panic("pool: Register called twice for handler " + name)
	}
	registry.handlers[name] = h
}

// Registered returns the sorted names of all registered handlers.
func Registered() []string {
	registry.RLock()
	defer registry.RUnlock()

	names := make([]string, 0, len(registry.handlers))
	for name := range registry.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolveHandler returns the handler selected by the settings.
func resolveHandler[T, R any](s *settings) (HandlerFunc[T, R], error) {
	if s.Inline {
		h, ok := s.script.(HandlerFunc[T, R])
		if !ok {
			return nil, &ValidationError{
				Field:  "workerScript",
				Reason: fmt.Sprintf("handler is %T, pool expects %v", s.script, reflect.TypeFor[HandlerFunc[T, R]]()),
			}
		}
		return h, nil
	}

	registry.RLock()
	v, ok := registry.handlers[s.WorkerFile]
	registry.RUnlock()
	if !ok {
		return nil, &ValidationError{Field: "workerFile", Reason: fmt.Sprintf("no handler registered as %q", s.WorkerFile)}
	}

	h, ok := v.(HandlerFunc[T, R])
	if !ok {
		return nil, &ValidationError{
			Field:  "workerFile",
			Reason: fmt.Sprintf("handler %q is %T, pool expects %v", s.WorkerFile, v, reflect.TypeFor[HandlerFunc[T, R]]()),
		}
	}
	return h, nil
}
