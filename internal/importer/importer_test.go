package importer

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// fakeCatalog is an in-memory Catalog recording every write.
type fakeCatalog struct {
	*taxonomy.MemoryStore

	namespaces map[string]bool
	products   map[string]int64
	attached   map[int64]map[string][]taxonomy.NodeID

	batches   [][]taxonomy.Assignment
	replaces  []bool
	refreshed []string
	applyErr  error
}

func newFakeCatalog() *fakeCatalog {
	s := taxonomy.NewMemoryStore()
	s.AddPath("product_cat", "Clothing", "Men", "Shoes")   // 1, 2, 3
	s.AddPath("product_cat", "Clothing", "Women", "Shoes") // 4, 5
	s.AddPath("product_cat", "Accessories")                // 6
	s.AddPath("pa_color", "Red")                           // 7
	s.AddPath("pa_color", "Blue")                          // 8

	return &fakeCatalog{
		MemoryStore: s,
		namespaces:  map[string]bool{"product_cat": true, "pa_color": true, "product_tag": true},
		products:    map[string]int64{"SKU-1": 101, "SKU-2": 102, "SKU-3": 103},
		attached:    map[int64]map[string][]taxonomy.NodeID{},
	}
}

func (c *fakeCatalog) NamespaceExists(_ context.Context, namespace string) (bool, error) {
	return c.namespaces[namespace], nil
}

func (c *fakeCatalog) ProductIDBySKU(_ context.Context, sku string) (int64, bool, error) {
	id, ok := c.products[sku]
	return id, ok, nil
}

func (c *fakeCatalog) ProductTermIDs(_ context.Context, productID int64, namespace string) ([]taxonomy.NodeID, error) {
	return c.attached[productID][namespace], nil
}

func (c *fakeCatalog) ApplyBatch(_ context.Context, batch []taxonomy.Assignment, replace bool) error {
	if c.applyErr != nil {
		return c.applyErr
	}
	c.batches = append(c.batches, slices.Clone(batch))
	c.replaces = append(c.replaces, replace)
	for _, a := range batch {
		if c.attached[a.ProductID] == nil {
			c.attached[a.ProductID] = map[string][]taxonomy.NodeID{}
		}
		if replace {
			c.attached[a.ProductID][a.Namespace] = slices.Clone(a.TermIDs)
			continue
		}
		for _, id := range a.TermIDs {
			if !slices.Contains(c.attached[a.ProductID][a.Namespace], id) {
				c.attached[a.ProductID][a.Namespace] = append(c.attached[a.ProductID][a.Namespace], id)
			}
		}
	}
	return nil
}

func (c *fakeCatalog) RefreshTermCounts(_ context.Context, namespace string) error {
	c.refreshed = append(c.refreshed, namespace)
	return nil
}

func runImport(t *testing.T, cat Catalog, opts Options, data string, options ...Option) (*Report, error) {
	t.Helper()
	im, err := New(cat, opts, options...)
	require.NoError(t, err)
	return im.Run(context.Background(), Input{
		Name:   "terms.csv",
		Size:   int64(len(data)),
		Reader: strings.NewReader(data),
	})
}

const mixedCSV = `sku,product_cat,pa_color
SKU-1,Accessories,Red
SKU-2,Clothing > Women > Shoes,Blue
SKU-3,Shoes,Green
MISSING,Accessories,Red
SKU-1,Men > Shoes,
`

func TestRun_UpdateMode(t *testing.T) {
	cat := newFakeCatalog()

	rep, err := runImport(t, cat, DefaultOptions(), mixedCSV)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, rep.Status)
	assert.Equal(t, []string{"product_cat", "pa_color"}, rep.Namespaces)
	assert.Equal(t, 5, rep.Stats.TotalRows)
	assert.Equal(t, 4, rep.Stats.ProductsFound)
	assert.Equal(t, 1, rep.Stats.ProductsNotFound)
	assert.Equal(t, 2, rep.Stats.ProductsUpdated)
	assert.Equal(t, 4, rep.Stats.TermsUpdated)
	assert.Equal(t, 0, rep.Stats.TermsSkipped)
	assert.Equal(t, []NamespaceCount{{"product_cat", 2}, {"pa_color", 2}}, rep.Stats.TermsPerNamespace)

	assert.Equal(t, []string{"MISSING"}, rep.ProductsNotFound)
	assert.Equal(t, []string{"SKU-1"}, rep.DuplicateSKUs)
	assert.Equal(t, []string{`pa_color: "Green"`}, rep.Failures["terms_not_found"])
	assert.Equal(t, []string{`product_cat: "Shoes" (ids: 3, 5) — use full path 'parent > child'`}, rep.Failures["duplicate_terms"])
	assert.Equal(t, []string{`product_cat: term "Men" not found as child of "root" in hierarchy "Men > Shoes"`}, rep.Failures["hierarchy_mismatch"])
	assert.Equal(t, 3, rep.FailureCount())

	require.Len(t, cat.batches, 1)
	assert.Equal(t, []taxonomy.Assignment{
		{ProductID: 101, SKU: "SKU-1", Namespace: "product_cat", TermIDs: []taxonomy.NodeID{6}},
		{ProductID: 101, SKU: "SKU-1", Namespace: "pa_color", TermIDs: []taxonomy.NodeID{7}},
		{ProductID: 102, SKU: "SKU-2", Namespace: "product_cat", TermIDs: []taxonomy.NodeID{5}},
		{ProductID: 102, SKU: "SKU-2", Namespace: "pa_color", TermIDs: []taxonomy.NodeID{8}},
	}, cat.batches[0])
	assert.Equal(t, []bool{false}, cat.replaces)
	assert.Equal(t, []string{"product_cat", "pa_color"}, cat.refreshed)
}

func TestRun_UpdateSkipsAttachedTerms(t *testing.T) {
	cat := newFakeCatalog()
	cat.attached[101] = map[string][]taxonomy.NodeID{"product_cat": {6}}

	rep, err := runImport(t, cat, DefaultOptions(), "sku,product_cat,pa_color\nSKU-1,Accessories,Red\n")
	require.NoError(t, err)

	assert.Equal(t, []string{`SKU-1: product_cat "Accessories"`}, rep.AlreadyExisting)
	assert.Equal(t, 1, rep.Stats.TermsSkipped)
	assert.Equal(t, 1, rep.Stats.TermsUpdated)
	require.Len(t, cat.batches, 1)
	assert.Equal(t, []taxonomy.Assignment{
		{ProductID: 101, SKU: "SKU-1", Namespace: "pa_color", TermIDs: []taxonomy.NodeID{7}},
	}, cat.batches[0])
}

func TestRun_ReplaceMode(t *testing.T) {
	cat := newFakeCatalog()
	cat.attached[101] = map[string][]taxonomy.NodeID{"product_cat": {3, 6}}

	opts := DefaultOptions()
	opts.Mode = ModeReplace
	rep, err := runImport(t, cat, opts, "sku,product_cat\nSKU-1,Accessories\n")
	require.NoError(t, err)

	assert.Empty(t, rep.AlreadyExisting)
	assert.Equal(t, []bool{true}, cat.replaces)
	assert.Equal(t, []taxonomy.NodeID{6}, cat.attached[101]["product_cat"])
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	cat := newFakeCatalog()

	opts := DefaultOptions()
	opts.DryRun = true
	rep, err := runImport(t, cat, opts, mixedCSV)
	require.NoError(t, err)

	assert.True(t, rep.DryRun)
	assert.Equal(t, 0, rep.Stats.TermsUpdated)
	assert.Equal(t, []NamespaceCount{{"product_cat", 2}, {"pa_color", 2}}, rep.Stats.TermsPerNamespace)
	assert.Empty(t, cat.batches)
	assert.Empty(t, cat.refreshed)
}

func TestRun_Batches(t *testing.T) {
	cat := newFakeCatalog()
	var b strings.Builder
	b.WriteString("sku,product_cat\n")
	for i, sku := range []string{"P1", "P2", "P3", "P4", "P5"} {
		cat.products[sku] = int64(200 + i)
		b.WriteString(sku + ",Accessories\n")
	}

	opts := DefaultOptions()
	opts.BatchSize = 2
	rep, err := runImport(t, cat, opts, b.String())
	require.NoError(t, err)

	require.Len(t, cat.batches, 3)
	assert.Len(t, cat.batches[0], 2)
	assert.Len(t, cat.batches[1], 2)
	assert.Len(t, cat.batches[2], 1)
	assert.Equal(t, 5, rep.Stats.TermsUpdated)
}

func TestRun_DuplicateSKURowsMerge(t *testing.T) {
	cat := newFakeCatalog()

	rep, err := runImport(t, cat, DefaultOptions(), "sku,pa_color\nSKU-1,Red\nSKU-1,Blue\nSKU-1,Red\n")
	require.NoError(t, err)

	require.Len(t, cat.batches, 1)
	assert.Equal(t, []taxonomy.Assignment{
		{ProductID: 101, SKU: "SKU-1", Namespace: "pa_color", TermIDs: []taxonomy.NodeID{7, 8}},
	}, cat.batches[0])
	assert.Equal(t, []string{"SKU-1"}, rep.DuplicateSKUs)
	assert.Equal(t, []NamespaceCount{{"pa_color", 2}}, rep.Stats.TermsPerNamespace)
}

func TestRun_RowWarnings(t *testing.T) {
	cat := newFakeCatalog()

	rep, err := runImport(t, cat, DefaultOptions(), "sku,product_cat,pa_color\nSKU-1,Accessories\n,Accessories,Red\n,,\n")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"line 2: incorrect number of columns (2 instead of 3)",
		"line 3: empty SKU",
	}, rep.Warnings)
	assert.Equal(t, 3, rep.Stats.TotalRows)
	assert.Equal(t, 1, rep.Stats.TermsUpdated)
}

func TestRun_SKUQuotesArePartOfTheSKU(t *testing.T) {
	cat := newFakeCatalog()
	cat.products[`TV-55"`] = 104

	data := "sku,pa_color\nTV-55\",Red\n\"TV-55\",Blue\n"

	rep, err := runImport(t, cat, DefaultOptions(), data)
	require.NoError(t, err)

	assert.Equal(t, []string{"TV-55"}, rep.ProductsNotFound)
	require.Len(t, cat.batches, 1)
	require.Len(t, cat.batches[0], 1)
	assert.Equal(t, int64(104), cat.batches[0][0].ProductID)
	assert.Equal(t, []taxonomy.NodeID{7}, cat.batches[0][0].TermIDs)
}

func TestRun_SkipLinesDelimiterAndBOM(t *testing.T) {
	cat := newFakeCatalog()

	opts := DefaultOptions()
	opts.SkipLines = 1
	opts.Delimiter = ';'
	data := "\xEF\xBB\xBFexport generated 2024-01-01\nSKU;product_cat\n=\"SKU-1\";Clothing > Men > Shoes\n"

	rep, err := runImport(t, cat, opts, data)
	require.NoError(t, err)

	assert.Empty(t, rep.Warnings)
	require.Len(t, cat.batches, 1)
	assert.Equal(t, []taxonomy.NodeID{3}, cat.batches[0][0].TermIDs)
}

func TestRun_Windows1251(t *testing.T) {
	cat := newFakeCatalog()
	cat.Add("product_cat", "Обувь", taxonomy.Root)

	data, err := charmap.Windows1251.NewEncoder().String("sku,product_cat\nSKU-1,Обувь\n")
	require.NoError(t, err)

	t.Run("decoded", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Encoding = EncodingWindows1251
		opts.DryRun = true
		rep, err := runImport(t, cat, opts, data)
		require.NoError(t, err)
		assert.Empty(t, rep.Warnings)
		assert.Zero(t, rep.FailureCount())
		assert.Equal(t, []NamespaceCount{{"product_cat", 1}}, rep.Stats.TermsPerNamespace)
	})

	t.Run("read as utf-8", func(t *testing.T) {
		opts := DefaultOptions()
		opts.DryRun = true
		rep, err := runImport(t, cat, opts, data)
		require.NoError(t, err)
		assert.Equal(t, []string{"file may not be in UTF-8 encoding"}, rep.Warnings)
		assert.Len(t, rep.Failures["terms_not_found"], 1)
	})
}

func TestRun_HeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty file", "", ErrEmptyFile},
		{"first column not sku", "id,product_cat\n1,Accessories\n", ErrInvalidHeader},
		{"sku only", "sku\nSKU-1\n", ErrInvalidHeader},
		{"unknown namespace", "sku,product_brand\nSKU-1,Acme\n", ErrUnknownNamespace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newFakeCatalog()
			rep, err := runImport(t, cat, DefaultOptions(), tt.data)
			require.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, rep)
			assert.Equal(t, StatusFailed, rep.Status)
			assert.Empty(t, cat.batches)
		})
	}
}

func TestRun_FileTooLarge(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxFileSize = 10

	_, err := runImport(t, newFakeCatalog(), opts, mixedCSV)
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "FILE001", MapError(err).Code)
}

func TestRun_ApplyErrorAbortsRun(t *testing.T) {
	cat := newFakeCatalog()
	cat.applyErr = errors.New("connection reset by peer")

	rep, err := runImport(t, cat, DefaultOptions(), mixedCSV)
	require.ErrorIs(t, err, cat.applyErr)
	assert.Equal(t, StatusFailed, rep.Status)
	assert.Contains(t, rep.Error, "connection reset")
	assert.Equal(t, 0, rep.Stats.TermsUpdated)
	assert.Empty(t, cat.refreshed)
	assert.Equal(t, "DB002", MapError(err).Code)
}

// failingStore fails every name lookup.
type failingStore struct {
	taxonomy.Store
	flushed bool
}

func (s *failingStore) FindByName(context.Context, string, string) (taxonomy.Node, bool, error) {
	return taxonomy.Node{}, false, errors.New("connection refused")
}

func (s *failingStore) Flush() { s.flushed = true }

func TestRun_StoreErrorAbortsRun(t *testing.T) {
	cat := newFakeCatalog()
	store := &failingStore{Store: cat}

	rep, err := runImport(t, cat, DefaultOptions(), mixedCSV, WithStore(store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, StatusFailed, rep.Status)
	assert.Empty(t, cat.batches)
	assert.True(t, store.flushed, "cache must be flushed even when the run fails")
}

func TestRun_WritesReportFile(t *testing.T) {
	opts := DefaultOptions()
	opts.LogDir = t.TempDir()

	rep, err := runImport(t, newFakeCatalog(), opts, mixedCSV)
	require.NoError(t, err)
	require.NotEmpty(t, rep.LogPath)
	assert.Contains(t, rep.LogPath, "taxonomy_update_results_")

	content, err := os.ReadFile(rep.LogPath)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "=== TAXONOMY UPDATE RESULTS ===")
	assert.Contains(t, text, "Mode: UPDATE\n")
	assert.Contains(t, text, "- Total rows processed: 5\n")
	assert.Contains(t, text, "Terms not found:\n- pa_color: \"Green\"\n")
	assert.Contains(t, text, "Products not found:\n- MISSING\n")
}

func TestRun_Progress(t *testing.T) {
	var phases []Phase
	rep, err := runImport(t, newFakeCatalog(), DefaultOptions(), mixedCSV,
		WithProgress(func(p Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
		}),
	)
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, []Phase{PhaseValidating, PhasePreparing, PhaseApplying, PhaseFinalizing, PhaseComplete}, phases)
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchSize = 0

	_, err := New(newFakeCatalog(), opts)
	require.ErrorIs(t, err, ErrInvalidOptions)
}
