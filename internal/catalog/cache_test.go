package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// countingStore counts calls that reach the wrapped store.
type countingStore struct {
	taxonomy.Store
	calls int
	err   error
}

func (s *countingStore) FindByName(ctx context.Context, namespace, name string) (taxonomy.Node, bool, error) {
	s.calls++
	if s.err != nil {
		return taxonomy.Node{}, false, s.err
	}
	return s.Store.FindByName(ctx, namespace, name)
}

func (s *countingStore) FindAll(ctx context.Context, q taxonomy.Query) ([]taxonomy.Node, error) {
	s.calls++
	return s.Store.FindAll(ctx, q)
}

func (s *countingStore) Get(ctx context.Context, id taxonomy.NodeID) (taxonomy.Node, error) {
	s.calls++
	return s.Store.Get(ctx, id)
}

func newFixture() *taxonomy.MemoryStore {
	s := taxonomy.NewMemoryStore()
	s.AddPath("product_cat", "Clothing", "Men", "Shoes")   // 1, 2, 3
	s.AddPath("product_cat", "Clothing", "Women", "Shoes") // 4, 5
	return s
}

func TestCachedStore_FindByNameHitsOnce(t *testing.T) {
	inner := &countingStore{Store: newFixture()}
	s := NewCachedStore(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		node, ok, err := s.FindByName(ctx, "product_cat", "Men")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, taxonomy.NodeID(2), node.ID)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedStore_CachesMisses(t *testing.T) {
	inner := &countingStore{Store: newFixture()}
	s := NewCachedStore(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := s.FindByName(ctx, "product_cat", "Hats")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedStore_ErrorsAreNotCached(t *testing.T) {
	inner := &countingStore{Store: newFixture(), err: errors.New("timeout")}
	s := NewCachedStore(inner, time.Minute)
	ctx := context.Background()

	_, _, err := s.FindByName(ctx, "product_cat", "Men")
	require.Error(t, err)

	inner.err = nil
	node, ok, err := s.FindByName(ctx, "product_cat", "Men")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.NodeID(2), node.ID)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedStore_FindAllKeysOnParent(t *testing.T) {
	inner := &countingStore{Store: newFixture()}
	s := NewCachedStore(inner, time.Minute)
	ctx := context.Background()

	men := taxonomy.ChildOf(2)
	women := taxonomy.ChildOf(4)

	underMen, err := s.FindAll(ctx, taxonomy.Query{Namespace: "product_cat", Name: "Shoes", Parent: &men, IncludeUnused: true})
	require.NoError(t, err)
	underWomen, err := s.FindAll(ctx, taxonomy.Query{Namespace: "product_cat", Name: "Shoes", Parent: &women, IncludeUnused: true})
	require.NoError(t, err)
	anywhere, err := s.FindAll(ctx, taxonomy.Query{Namespace: "product_cat", Name: "Shoes", IncludeUnused: true})
	require.NoError(t, err)

	require.Len(t, underMen, 1)
	require.Len(t, underWomen, 1)
	assert.Equal(t, taxonomy.NodeID(3), underMen[0].ID)
	assert.Equal(t, taxonomy.NodeID(5), underWomen[0].ID)
	assert.Len(t, anywhere, 2)
	assert.Equal(t, 3, inner.calls)

	_, err = s.FindAll(ctx, taxonomy.Query{Namespace: "product_cat", Name: "Shoes", Parent: &men, IncludeUnused: true})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCachedStore_FindAllReturnsCopies(t *testing.T) {
	s := NewCachedStore(newFixture(), time.Minute)
	ctx := context.Background()
	q := taxonomy.Query{Namespace: "product_cat", Name: "Shoes", IncludeUnused: true}

	first, err := s.FindAll(ctx, q)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := s.FindAll(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "Shoes", second[0].Name)
}

func TestCachedStore_Flush(t *testing.T) {
	inner := &countingStore{Store: newFixture()}
	s := NewCachedStore(inner, time.Minute)
	ctx := context.Background()

	_, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s.Flush()
	assert.Equal(t, 0, s.Len())

	_, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedStore_ResolverThroughCache(t *testing.T) {
	inner := &countingStore{Store: newFixture()}
	r := taxonomy.NewResolver(NewCachedStore(inner, time.Minute))
	ctx := context.Background()

	res, err := r.Resolve(ctx, "Clothing > Women > Shoes", "product_cat")
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, taxonomy.NodeID(5), res.Node.ID)

	calls := inner.calls
	res, err = r.Resolve(ctx, "Clothing > Women > Shoes", "product_cat")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.NodeID(5), res.Node.ID)
	assert.Equal(t, calls, inner.calls, "second resolution must be served from cache")
}
