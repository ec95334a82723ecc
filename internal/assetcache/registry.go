package assetcache

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/kisansathi/gateway/pkg/errors"
)

// Handler runs one named background sync trigger.
type Handler func(ctx context.Context) error

// Registry is the explicit dispatch table of background sync triggers. The
// host environment fires a tag when connectivity is restored; the registry
// routes it to the registered handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a tag, replacing any previous binding.
func (r *Registry) Register(tag string, handler Handler) {
	if tag == "" || handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = handler
}

// Trigger runs the handler registered for tag.
func (r *Registry) Trigger(ctx context.Context, tag string) error {
	r.mu.RLock()
	handler, ok := r.handlers[tag]
	r.mu.RUnlock()

	if !ok {
		return apperrors.ErrUnknownSyncTag
	}
	return handler(ctx)
}

// Tags lists the registered trigger tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
