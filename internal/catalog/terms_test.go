package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

func TestBuildFindAll(t *testing.T) {
	root := taxonomy.Root
	child := taxonomy.ChildOf(42)

	tests := []struct {
		name      string
		q         taxonomy.Query
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "any parent, used only",
			q:         taxonomy.Query{Namespace: "product_cat", Name: "Shoes"},
			wantWhere: "WHERE namespace = $1 AND name = $2 AND usage_count > 0 ORDER BY id",
			wantArgs:  []any{"product_cat", "Shoes"},
		},
		{
			name:      "any parent, include unused",
			q:         taxonomy.Query{Namespace: "product_cat", Name: "Shoes", IncludeUnused: true},
			wantWhere: "WHERE namespace = $1 AND name = $2 ORDER BY id",
			wantArgs:  []any{"product_cat", "Shoes"},
		},
		{
			name:      "root parent",
			q:         taxonomy.Query{Namespace: "product_cat", Name: "Shoes", Parent: &root, IncludeUnused: true},
			wantWhere: "WHERE namespace = $1 AND name = $2 AND parent_id IS NULL ORDER BY id",
			wantArgs:  []any{"product_cat", "Shoes"},
		},
		{
			name:      "child parent",
			q:         taxonomy.Query{Namespace: "product_cat", Name: "Shoes", Parent: &child},
			wantWhere: "WHERE namespace = $1 AND name = $2 AND parent_id = $3 AND usage_count > 0 ORDER BY id",
			wantArgs:  []any{"product_cat", "Shoes", int64(42)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildFindAll(tt.q)
			assert.Contains(t, query, tt.wantWhere)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
