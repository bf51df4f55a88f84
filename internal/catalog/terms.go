package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

const termColumns = "id, name, parent_id, namespace"

// FindByName returns the lowest-id term with the exact name.
func (c *Catalog) FindByName(ctx context.Context, namespace, name string) (taxonomy.Node, bool, error) {
	query := "SELECT " + termColumns + " FROM terms WHERE namespace = $1 AND name = $2 ORDER BY id LIMIT 1"

	node, err := scanTerm(c.pool.QueryRow(ctx, query, namespace, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return taxonomy.Node{}, false, nil
	}
	if err != nil {
		return taxonomy.Node{}, false, fmt.Errorf("find term by name: %w", err)
	}
	return node, true, nil
}

// FindAll returns matching terms ordered by id.
func (c *Catalog) FindAll(ctx context.Context, q taxonomy.Query) ([]taxonomy.Node, error) {
	query, args := buildFindAll(q)

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find terms: %w", err)
	}
	defer rows.Close()

	var nodes []taxonomy.Node
	for rows.Next() {
		node, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return nodes, nil
}

// buildFindAll renders the FindAll query for q.
func buildFindAll(q taxonomy.Query) (string, []any) {
	where := []string{"namespace = $1", "name = $2"}
	args := []any{q.Namespace, q.Name}

	if q.Parent != nil {
		if id, ok := q.Parent.ID(); ok {
			args = append(args, int64(id))
			where = append(where, fmt.Sprintf("parent_id = $%d", len(args)))
		} else {
			where = append(where, "parent_id IS NULL")
		}
	}
	if !q.IncludeUnused {
		where = append(where, "usage_count > 0")
	}

	query := "SELECT " + termColumns + " FROM terms WHERE " + strings.Join(where, " AND ") + " ORDER BY id"
	return query, args
}

// Get returns the term with the id, or ErrNodeNotFound.
func (c *Catalog) Get(ctx context.Context, id taxonomy.NodeID) (taxonomy.Node, error) {
	query := "SELECT " + termColumns + " FROM terms WHERE id = $1"

	node, err := scanTerm(c.pool.QueryRow(ctx, query, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return taxonomy.Node{}, fmt.Errorf("term %s: %w", id, ErrNodeNotFound)
	}
	if err != nil {
		return taxonomy.Node{}, fmt.Errorf("get term %s: %w", id, err)
	}
	return node, nil
}

// NamespaceExists reports whether the namespace is registered.
func (c *Catalog) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM namespaces WHERE name = $1)", namespace,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check namespace %s: %w", namespace, err)
	}
	return exists, nil
}

// Namespaces lists registered namespace names in alphabetical order.
func (c *Catalog) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, "SELECT name FROM namespaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return names, nil
}

// RefreshTermCounts recomputes usage_count for every term in the namespace.
func (c *Catalog) RefreshTermCounts(ctx context.Context, namespace string) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE terms t
		SET usage_count = (SELECT COUNT(*) FROM product_terms pt WHERE pt.term_id = t.id)
		WHERE t.namespace = $1`, namespace)
	if err != nil {
		return fmt.Errorf("refresh term counts for %s: %w", namespace, err)
	}
	return nil
}

// scanTerm reads one term row selected with termColumns.
func scanTerm(row pgx.Row) (taxonomy.Node, error) {
	var (
		id        int64
		name      string
		parentID  pgtype.Int8
		namespace string
	)
	if err := row.Scan(&id, &name, &parentID, &namespace); err != nil {
		return taxonomy.Node{}, err
	}

	parent := taxonomy.Root
	if parentID.Valid {
		parent = taxonomy.ChildOf(taxonomy.NodeID(parentID.Int64))
	}

	return taxonomy.Node{
		ID:        taxonomy.NodeID(id),
		Name:      name,
		Parent:    parent,
		Namespace: namespace,
	}, nil
}
