package provider

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// Factory constructs a Provider from its settings map. Provider packages
// register a Factory from their own init(), the same self-registration
// shape the teacher uses for its DNS provider plugins.
type Factory func(log logr.Logger, settings map[string]string) (Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by provider packages in their init() to self-register
// under name. Register panics on a duplicate name, since that can only
// happen from a programming error (two packages claiming the same name),
// never from user input.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("provider: %q already registered", name))
	}
	factories[name] = f
}

// New looks up the named provider and constructs it from settings.
func New(name string, log logr.Logger, settings map[string]string) (Provider, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("provider: unsupported provider %q (registered: %v)", name, registeredNames())
	}
	return f(log, settings)
}

func registeredNames() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	return names
}
