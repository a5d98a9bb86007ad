package render

import (
	"sync"

	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Selection records which node is being inspected. It is independent of
// the tree state and safe for concurrent use.
type Selection struct {
	mu sync.RWMutex
	id string
}

// Select marks id as the inspected node.
func (s *Selection) Select(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// Selected returns the inspected node id, if any.
func (s *Selection) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// Clear drops the selection.
func (s *Selection) Clear() {
	s.Select("")
}

// Reconcile clears the selection when its node is no longer in h and
// reports whether it did.
func (s *Selection) Reconcile(h *tree.Hierarchy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		return false
	}
	if _, ok := h.Lookup(s.id); ok {
		return false
	}
	s.id = ""
	return true
}
