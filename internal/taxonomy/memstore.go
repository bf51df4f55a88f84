package taxonomy

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store. Nodes are returned in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID NodeID
	nodes  []Node
	byID   map[NodeID]int
	usage  map[NodeID]int
}

// NewMemoryStore returns an empty store whose first node gets id 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byID:   make(map[NodeID]int),
		usage:  make(map[NodeID]int),
	}
}

// Add inserts a node and returns it with its assigned id.
func (s *MemoryStore) Add(namespace, name string, parent ParentRef) Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := Node{ID: s.nextID, Name: name, Parent: parent, Namespace: namespace}
	s.nextID++
	s.byID[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	return n
}

// AddPath inserts every missing level of names under namespace and returns
// the leaf. Existing nodes under the same parent are reused.
func (s *MemoryStore) AddPath(namespace string, names ...string) Node {
	parent := Root
	var leaf Node
	for _, name := range names {
		if n, ok := s.child(namespace, name, parent); ok {
			leaf = n
		} else {
			leaf = s.Add(namespace, name, parent)
		}
		parent = ChildOf(leaf.ID)
	}
	return leaf
}

func (s *MemoryStore) child(namespace, name string, parent ParentRef) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Namespace == namespace && n.Name == name && n.Parent == parent {
			return n, true
		}
	}
	return Node{}, false
}

// SetUsage sets how many objects reference the node.
func (s *MemoryStore) SetUsage(id NodeID, count int) {
	s.mu.Lock()
	s.usage[id] = count
	s.mu.Unlock()
}

// Namespaces returns the distinct namespaces holding at least one node.
func (s *MemoryStore) Namespaces() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, n := range s.nodes {
		out[n.Namespace] = true
	}
	return out
}

// FindByName returns the first node inserted with the name.
func (s *MemoryStore) FindByName(_ context.Context, namespace, name string) (Node, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Namespace == namespace && n.Name == name {
			return n, true, nil
		}
	}
	return Node{}, false, nil
}

// FindAll returns matching nodes in insertion order.
func (s *MemoryStore) FindAll(_ context.Context, q Query) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Node
	for _, n := range s.nodes {
		if n.Namespace != q.Namespace || n.Name != q.Name {
			continue
		}
		if q.Parent != nil && n.Parent != *q.Parent {
			continue
		}
		if !q.IncludeUnused && s.usage[n.ID] == 0 {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Get returns the node with the id.
func (s *MemoryStore) Get(_ context.Context, id NodeID) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Node{}, fmt.Errorf("term %s not found", id)
	}
	return s.nodes[i], nil
}
