package catalog

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// CachedStore memoizes term lookups of another store.
//
// An import file repeats the same category values on many rows, so one run
// issues the same handful of queries thousands of times. Only successful
// lookups are cached; errors always reach the caller.
type CachedStore struct {
	store taxonomy.Store
	cache *gocache.Cache
}

type foundNode struct {
	node  taxonomy.Node
	found bool
}

// NewCachedStore wraps store with entries that expire after ttl.
func NewCachedStore(store taxonomy.Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		store: store,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// FindByName returns a cached lookup or queries the underlying store.
func (s *CachedStore) FindByName(ctx context.Context, namespace, name string) (taxonomy.Node, bool, error) {
	key := "name|" + namespace + "|" + name
	if v, ok := s.cache.Get(key); ok {
		f := v.(foundNode)
		return f.node, f.found, nil
	}

	node, found, err := s.store.FindByName(ctx, namespace, name)
	if err != nil {
		return taxonomy.Node{}, false, err
	}
	s.cache.SetDefault(key, foundNode{node: node, found: found})
	return node, found, nil
}

// FindAll returns a cached result set or queries the underlying store.
func (s *CachedStore) FindAll(ctx context.Context, q taxonomy.Query) ([]taxonomy.Node, error) {
	key := queryKey(q)
	if v, ok := s.cache.Get(key); ok {
		return append([]taxonomy.Node(nil), v.([]taxonomy.Node)...), nil
	}

	nodes, err := s.store.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, append([]taxonomy.Node(nil), nodes...))
	return nodes, nil
}

// Get returns a cached node or queries the underlying store.
func (s *CachedStore) Get(ctx context.Context, id taxonomy.NodeID) (taxonomy.Node, error) {
	key := "id|" + id.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(taxonomy.Node), nil
	}

	node, err := s.store.Get(ctx, id)
	if err != nil {
		return taxonomy.Node{}, err
	}
	s.cache.SetDefault(key, node)
	return node, nil
}

// Flush drops every cached entry. Called after writes that change usage.
func (s *CachedStore) Flush() {
	s.cache.Flush()
}

// Len returns the number of cached entries, including expired ones not yet
// cleaned up.
func (s *CachedStore) Len() int {
	return s.cache.ItemCount()
}

func queryKey(q taxonomy.Query) string {
	parent := "any"
	if q.Parent != nil {
		parent = q.Parent.String()
	}
	return fmt.Sprintf("all|%s|%s|%s|%t", q.Namespace, q.Name, parent, q.IncludeUnused)
}
