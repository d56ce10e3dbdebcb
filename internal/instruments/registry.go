package instruments

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Registry stores instruments by stable identifier.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Instrument
}

// NewRegistry creates an empty instrument registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Instrument)}
}

// ValidateMetadata checks required metadata fields and id format.
func ValidateMetadata(meta Metadata) error {
	id := strings.TrimSpace(meta.ID)
	name := strings.TrimSpace(meta.Name)
	kind := strings.TrimSpace(meta.Kind)
	if id == "" || name == "" || kind == "" {
		return fmt.Errorf("%w: id, kind, and name are required", ErrInvalidMetadata)
	}
	if !IsValidID(id) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidMetadata, id)
	}
	return nil
}

// Register adds an instrument to the registry.
func (r *Registry) Register(inst Instrument) error {
	if inst == nil {
		return ErrInstrumentNil
	}

	meta := inst.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[meta.ID]; ok {
		return fmt.Errorf("%w: %s", ErrInstrumentExists, meta.ID)
	}
	r.items[meta.ID] = inst
	return nil
}

// Resolve returns an instrument by id.
func (r *Registry) Resolve(id string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.items[id]
	return inst, ok
}

// ListMetadata returns deterministic metadata ordering by id.
func (r *Registry) ListMetadata() []Metadata {
	r.mu.RLock()
	list := make([]Metadata, 0, len(r.items))
	for _, inst := range r.items {
		list = append(list, inst.Metadata())
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Len returns the number of registered instruments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// CloseAll closes and removes every instrument, returning all close errors.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]Instrument)
	r.mu.Unlock()

	var err error
	for id, inst := range items {
		if cerr := inst.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", id, cerr))
		}
	}
	return err
}

// IsValidID reports whether id is a lowercase dotted identifier.
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(id)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
