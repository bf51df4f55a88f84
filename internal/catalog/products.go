package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// ProductIDBySKU returns the id of the product with the SKU.
func (c *Catalog) ProductIDBySKU(ctx context.Context, sku string) (int64, bool, error) {
	var id int64
	err := c.pool.QueryRow(ctx, "SELECT id FROM products WHERE sku = $1", sku).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find product %q: %w", sku, err)
	}
	return id, true, nil
}

// ProductTermIDs returns the terms of the namespace attached to the product.
func (c *Catalog) ProductTermIDs(ctx context.Context, productID int64, namespace string) ([]taxonomy.NodeID, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT pt.term_id
		FROM product_terms pt
		JOIN terms t ON t.id = pt.term_id
		WHERE pt.product_id = $1 AND t.namespace = $2
		ORDER BY pt.position, pt.term_id`, productID, namespace)
	if err != nil {
		return nil, fmt.Errorf("list terms of product %d: %w", productID, err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (taxonomy.NodeID, error) {
		var id int64
		err := row.Scan(&id)
		return taxonomy.NodeID(id), err
	})
	if err != nil {
		return nil, fmt.Errorf("list terms of product %d: %w", productID, err)
	}
	return ids, nil
}

// ApplyBatch writes the assignments in one transaction.
//
// With replace, a product's existing terms in the assignment's namespace are
// removed first. Otherwise terms are appended and already attached terms are
// left untouched. Any error rolls back the whole batch.
func (c *Catalog) ApplyBatch(ctx context.Context, batch []taxonomy.Assignment, replace bool) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range batch {
		if err := applyAssignment(ctx, tx, a, replace); err != nil {
			return fmt.Errorf("product %q (%s): %w", a.SKU, a.Namespace, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func applyAssignment(ctx context.Context, tx pgx.Tx, a taxonomy.Assignment, replace bool) error {
	if replace {
		_, err := tx.Exec(ctx, `
			DELETE FROM product_terms pt
			USING terms t
			WHERE pt.term_id = t.id AND pt.product_id = $1 AND t.namespace = $2`,
			a.ProductID, a.Namespace)
		if err != nil {
			return fmt.Errorf("clear terms: %w", err)
		}
	}

	var base int
	err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM product_terms WHERE product_id = $1",
		a.ProductID,
	).Scan(&base)
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}

	batch := &pgx.Batch{}
	for i, id := range a.TermIDs {
		batch.Queue(`
			INSERT INTO product_terms (product_id, term_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (product_id, term_id) DO NOTHING`,
			a.ProductID, int64(id), base+i)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert terms: %w", err)
	}
	return nil
}
