package taxonomy

// resolver.go implements term resolution.
//
// A value without the hierarchy separator is a flat name: it must match
// exactly one node in the namespace, otherwise it is reported as not found or
// as a duplicate. A value with the separator is walked left to right, each
// level required to be a direct child of the previous one. The walk stops at
// the first level that fails.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/taxonomy-import/internal/logging"
)

// Separator delimits levels of a hierarchy path.
const Separator = " > "

// rootLabel names the top of the tree in mismatch messages.
const rootLabel = "root"

// ErrEmptyValue is returned when Resolve is called with a blank value.
// Callers are expected to skip empty cells before resolving.
var ErrEmptyValue = errors.New("taxonomy: empty value")

// Resolver resolves raw cell values to nodes.
// It records every failure in its ledger. A Resolver is meant to live for one
// import run.
type Resolver struct {
	store  Store
	ledger *Ledger
}

// NewResolver creates a resolver reading from store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:  store,
		ledger: NewLedger(),
	}
}

// Ledger returns the failures recorded so far.
func (r *Resolver) Ledger() *Ledger {
	return r.ledger
}

// Resolve maps value to a node in namespace.
//
// Resolution failures are returned in the Result and recorded in the ledger.
// The error is non-nil only when the value is blank or the store fails.
func (r *Resolver) Resolve(ctx context.Context, value, namespace string) (Result, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Result{}, ErrEmptyValue
	}

	var (
		res Result
		err error
	)
	if strings.Contains(value, Separator) {
		res, err = r.resolveHierarchical(ctx, value, namespace)
	} else {
		res, err = r.resolveFlat(ctx, value, namespace)
	}
	if err != nil {
		return Result{}, err
	}

	if !res.OK() {
		r.ledger.Record(res.Failure.Kind, res.Failure.Detail)
		logging.FromContext(ctx).Debug("term not resolved",
			"namespace", namespace,
			"value", value,
			"kind", res.Failure.Kind.String(),
		)
	}
	return res, nil
}

// resolveFlat resolves a single name and rejects names shared by several
// nodes, since a bare name cannot say which one is meant.
func (r *Resolver) resolveFlat(ctx context.Context, name, namespace string) (Result, error) {
	name = strings.TrimSpace(name)

	node, ok, err := r.store.FindByName(ctx, namespace, name)
	if err != nil {
		return Result{}, fmt.Errorf("find term %q in %s: %w", name, namespace, err)
	}
	if !ok {
		return Failed(NotFound, fmt.Sprintf(`%s: "%s"`, namespace, name)), nil
	}

	matches, err := r.store.FindAll(ctx, Query{
		Namespace:     namespace,
		Name:          name,
		IncludeUnused: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("list terms %q in %s: %w", name, namespace, err)
	}

	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID.String()
		}
		return Failed(DuplicateName, fmt.Sprintf(`%s: "%s" (ids: %s) — use full path 'parent > child'`,
			namespace, name, strings.Join(ids, ", "))), nil
	}

	return Resolved(node), nil
}

// resolveHierarchical walks a "parent > child" path and returns its leaf.
func (r *Resolver) resolveHierarchical(ctx context.Context, path, namespace string) (Result, error) {
	levels := strings.Split(path, Separator)
	for i := range levels {
		levels[i] = strings.TrimSpace(levels[i])
	}

	parent := Root
	var deepest Node

	for _, level := range levels {
		node, ok, err := r.store.FindByName(ctx, namespace, level)
		if err != nil {
			return Result{}, fmt.Errorf("find term %q in %s: %w", level, namespace, err)
		}
		if !ok {
			return Failed(NotFound, fmt.Sprintf(`%s: "%s" in hierarchy "%s"`, namespace, level, path)), nil
		}

		if node.Parent != parent {
			scope := parent
			children, err := r.store.FindAll(ctx, Query{
				Namespace:     namespace,
				Name:          level,
				Parent:        &scope,
				IncludeUnused: true,
			})
			if err != nil {
				return Result{}, fmt.Errorf("list children %q of %s in %s: %w", level, parent, namespace, err)
			}

			if len(children) == 0 {
				parentName, err := r.parentLabel(ctx, parent)
				if err != nil {
					return Result{}, err
				}
				return Failed(HierarchyMismatch, fmt.Sprintf(`%s: term "%s" not found as child of "%s" in hierarchy "%s"`,
					namespace, level, parentName, path)), nil
			}

			// The parent already disambiguates; take the first child.
			node = children[0]
		}

		parent = ChildOf(node.ID)
		deepest = node
	}

	return Resolved(deepest), nil
}

func (r *Resolver) parentLabel(ctx context.Context, parent ParentRef) (string, error) {
	id, ok := parent.ID()
	if !ok {
		return rootLabel, nil
	}
	n, err := r.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get parent term %s: %w", id, err)
	}
	return n.Name, nil
}
