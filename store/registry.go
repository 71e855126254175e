package store

import (
	"fmt"
	"sort"
)

var registry = make(map[string]Registration)

type NewFunc func(path string, opts Options) (Backend, error)
type InitFunc func(path string, opts Options) error

type Registration struct {
	NewFunc      NewFunc
	InitFunc     InitFunc
	IsPersistent bool
}

// Register makes a backend available under a name. It panics on a duplicate
// name, so it is meant to be called from init.
func Register(name string, r Registration) {
	if r.NewFunc == nil {
		panic("NewFunc must not be nil")
	}
	if _, found := registry[name]; found {
		panic(fmt.Sprintf("already registered backend %q", name))
	}
	registry[name] = r
}

// Open opens a registered backend.
func Open(name, path string, opts Options) (Backend, error) {
	r, registered := registry[name]
	if !registered {
		return nil, ErrNotRegistered
	}
	return r.NewFunc(path, opts)
}

// Init prepares the storage of a persistent backend.
func Init(name, path string, opts Options) error {
	r, registered := registry[name]
	if !registered {
		return ErrNotRegistered
	} else if !r.IsPersistent {
		return ErrNotPersistent
	} else if r.InitFunc == nil {
		return ErrNotSupported
	}
	return r.InitFunc(path, opts)
}

func IsRegistered(name string) bool {
	_, ok := registry[name]
	return ok
}

func IsPersistent(name string) bool {
	return registry[name].IsPersistent
}

// Backends lists the registered backend names.
func Backends() []string {
	t := make([]string, 0, len(registry))
	for n := range registry {
		t = append(t, n)
	}
	sort.Strings(t)
	return t
}
