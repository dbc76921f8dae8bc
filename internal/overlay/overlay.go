// Package overlay looks up registered overlays by ID.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kiesman99/drape/internal/store"
	"github.com/kiesman99/drape/pkg/tile"
)

// ErrNotFound is returned when no overlay is registered under an ID.
var ErrNotFound = errors.New("overlay not found")

// Overlay pairs a descriptor with the location of its original image.
type Overlay struct {
	ID         string                 `json:"id" mapstructure:"id"`
	Descriptor tile.OverlayDescriptor `json:"descriptor" mapstructure:"descriptor"`
	Source     store.Locator          `json:"source" mapstructure:"source"`
}

// Validate checks the ID, descriptor and source.
func (o Overlay) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("overlay id is required")
	}
	if err := o.Descriptor.Validate(); err != nil {
		return fmt.Errorf("overlay %s: %w", o.ID, err)
	}
	if err := o.Source.Validate(); err != nil {
		return fmt.Errorf("overlay %s: source: %w", o.ID, err)
	}
	return nil
}

// Repository resolves overlays by ID.
type Repository interface {
	Get(ctx context.Context, id string) (*Overlay, error)
}

// Static is an in-memory Repository, typically loaded from configuration.
type Static struct {
	overlays map[string]Overlay
}

// NewStatic validates overlays and indexes them by ID.
func NewStatic(overlays ...Overlay) (*Static, error) {
	s := &Static{overlays: make(map[string]Overlay, len(overlays))}
	for _, o := range overlays {
		if err := o.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.overlays[o.ID]; dup {
			return nil, fmt.Errorf("overlay %s registered twice", o.ID)
		}
		s.overlays[o.ID] = o
	}
	return s, nil
}

func (s *Static) Get(_ context.Context, id string) (*Overlay, error) {
	o, ok := s.overlays[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &o, nil
}

// IDs returns the registered IDs in sorted order.
func (s *Static) IDs() []string {
	ids := make([]string, 0, len(s.overlays))
	for id := range s.overlays {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Chain asks each repository in turn and returns the first match.
type Chain []Repository

func (c Chain) Get(ctx context.Context, id string) (*Overlay, error) {
	for _, r := range c {
		o, err := r.Get(ctx, id)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
