package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/gravity-simulator/model"
)

var (
	// ErrBodyExists indicates a body with the same ID is already registered.
	ErrBodyExists = errors.New("body already exists")
	// ErrBodyNotFound indicates a requested body was not found.
	ErrBodyNotFound = errors.New("body not found")
	// ErrSealed indicates the body set is frozen because a run has started.
	ErrSealed = errors.New("knowledge base is sealed")
)

// KnowledgeBase is the in-memory body set of a simulation: the ordered
// top-level bodies plus, for each, its ordered satellites.
//
// The set is fixed once sealed; only the bodies' dynamic state changes after
// that, and that is owned by the simulation engine.
type KnowledgeBase struct {
	mu sync.RWMutex

	bodies   map[string]*model.Body
	topLevel []*model.Body
	sealed   bool
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		bodies: make(map[string]*model.Body),
	}
}

// AddBody registers a top-level body. Registration order is the update order.
func (kb *KnowledgeBase) AddBody(b *model.Body) error {
	if b == nil {
		return fmt.Errorf("AddBody: body is nil")
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if kb.sealed {
		return fmt.Errorf("add body %q: %w", b.ID, ErrSealed)
	}
	if _, exists := kb.bodies[b.ID]; exists {
		return fmt.Errorf("body with ID %q: %w", b.ID, ErrBodyExists)
	}
	if b.IsSatellite() {
		return fmt.Errorf("body %q is a satellite of %q; use AddSatellite", b.ID, b.Parent().ID)
	}
	kb.bodies[b.ID] = b
	kb.topLevel = append(kb.topLevel, b)
	return nil
}

// AddSatellite attaches s to the registered top-level body parentID.
func (kb *KnowledgeBase) AddSatellite(parentID string, s *model.Body) error {
	if s == nil {
		return fmt.Errorf("AddSatellite: satellite is nil")
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if kb.sealed {
		return fmt.Errorf("add satellite %q: %w", s.ID, ErrSealed)
	}
	if _, exists := kb.bodies[s.ID]; exists {
		return fmt.Errorf("body with ID %q: %w", s.ID, ErrBodyExists)
	}
	parent, ok := kb.bodies[parentID]
	if !ok {
		return fmt.Errorf("parent %q for satellite %q: %w", parentID, s.ID, ErrBodyNotFound)
	}
	if err := parent.AddSatellite(s); err != nil {
		return err
	}
	kb.bodies[s.ID] = s
	return nil
}

// GetBody returns the body with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetBody(id string) *model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.bodies[id]
}

// TopLevel returns the top-level bodies in registration order.
func (kb *KnowledgeBase) TopLevel() []*model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Body, len(kb.topLevel))
	copy(res, kb.topLevel)
	return res
}

// All returns every body: each top-level body followed by its satellites.
func (kb *KnowledgeBase) All() []*model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Body, 0, len(kb.bodies))
	for _, b := range kb.topLevel {
		res = append(res, b)
		res = append(res, b.Satellites()...)
	}
	return res
}

// Len returns the number of registered bodies, satellites included.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.bodies)
}

// Seal freezes the body set. It is idempotent.
func (kb *KnowledgeBase) Seal() {
	kb.mu.Lock()
	kb.sealed = true
	kb.mu.Unlock()
}

// Sealed reports whether the body set is frozen.
func (kb *KnowledgeBase) Sealed() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.sealed
}

// Reference returns the reference body used for distance display. When more
// than one body carries the flag the last one in update order wins.
func (kb *KnowledgeBase) Reference() *model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var ref *model.Body
	for _, b := range kb.topLevel {
		if b.IsReference {
			ref = b
		}
	}
	return ref
}
