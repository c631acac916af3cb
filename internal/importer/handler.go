package importer

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

// Handler is the per-entity plugin of the import pipeline.
//
// ValidateRow and PreValidateBatch report row problems inside their results; a returned error
// means the backing store failed. ExecuteBatch records per-row failures in the BatchResult and
// only returns an error when the whole batch cannot continue.
type Handler interface {
	EntityType() EntityType
	FieldDefinitions() []FieldDefinition
	AutoMapColumns(headers []string) map[string]string
	ValidateRow(ctx context.Context, row MappedRow, ictx Context) (ValidatedRow, error)
	PreValidateBatch(ctx context.Context, rows []MappedRow, ictx Context) (PreValidation, error)
	ExecuteBatch(ctx context.Context, rows []ValidatedRow, ictx Context) (BatchResult, error)
	Rollback(ctx context.Context, importJobID, tenantID string) (RollbackResult, error)
	RestoreSnapshot(ctx context.Context, tenantID string, snapshot models.UpdateSnapshot) error
	GenerateTemplate() ([]byte, error)
}

// Registry maps entity types to their handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[EntityType]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[EntityType]Handler, len(handlers))}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return errors.New("register import handler: nil handler")
	}
	t := h.EntityType()
	if t == "" {
		return errors.New("register import handler: empty entity type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return errors.Errorf("register import handler: %s is already registered", t)
	}
	r.handlers[t] = h
	return nil
}

// Get returns ErrUnsupportedEntityType when nothing is registered for t.
func (r *Registry) Get(t EntityType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedEntityType, "%q", t)
	}
	return h, nil
}

func (r *Registry) Types() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
