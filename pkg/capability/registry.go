package capability

import (
	"fmt"

	"careroute/pkg/models"
)

// Registry is built once at startup and never mutated, so it needs no locking.
type Registry struct {
	order []models.CapabilityID
	byID  map[models.CapabilityID]Capability
	tags  map[models.CapabilityID]map[string]struct{}
}

// NewRegistry registers caps in the given order. Registration order breaks
// scoring ties, so callers should list first-line capabilities first.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{
		byID: make(map[models.CapabilityID]Capability, len(caps)),
		tags: make(map[models.CapabilityID]map[string]struct{}, len(caps)),
	}

	for _, c := range caps {
		id := c.ID()
		if _, ok := models.ParseCapabilityID(string(id)); !ok {
			return nil, fmt.Errorf("unknown capability id %q", id)
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("capability %q registered twice", id)
		}

		set := make(map[string]struct{}, len(c.Tags()))
		for _, t := range c.Tags() {
			set[t] = struct{}{}
		}

		r.order = append(r.order, id)
		r.byID[id] = c
		r.tags[id] = set
	}

	return r, nil
}

func (r *Registry) Get(id models.CapabilityID) (Capability, bool) {
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) Has(id models.CapabilityID) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns capabilities in registration order.
func (r *Registry) All() []Capability {
	out := make([]Capability, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Overlap counts how many of tags the capability claims.
func (r *Registry) Overlap(id models.CapabilityID, tags []string) int {
	set := r.tags[id]
	n := 0
	for _, t := range tags {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

// Info describes a registered capability for listing endpoints.
type Info struct {
	ID       models.CapabilityID `json:"id"`
	Tags     []string            `json:"tags"`
	Priority int                 `json:"priority"`
}

func (r *Registry) Describe() []Info {
	out := make([]Info, 0, len(r.order))
	for _, c := range r.All() {
		out = append(out, Info{ID: c.ID(), Tags: c.Tags(), Priority: c.Priority()})
	}
	return out
}
