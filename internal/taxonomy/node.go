// Package taxonomy resolves human-readable category values from import files
// to classification nodes stored in a catalog.
//
// A value is either a bare term name ("Shoes") or a hierarchy path using the
// " > " separator ("Clothing > Men > Shoes"). The [Resolver] turns such a
// value into exactly one [Node], or into a typed [Failure] that is recorded in
// its [Ledger] so the caller can keep processing the remaining cells.
//
// The package never writes to the catalog. All lookups go through the
// [Store] interface, which is implemented by the Postgres catalog and by
// [MemoryStore] for tests.
package taxonomy

import (
	"context"
	"strconv"
)

// NodeID identifies a node within its namespace.
type NodeID int64

func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParentRef is a nullable reference to a parent node.
// The zero value is Root.
type ParentRef struct {
	id    NodeID
	valid bool
}

// Root references the top of a namespace tree.
var Root = ParentRef{}

// ChildOf returns a reference to the node with the given id.
func ChildOf(id NodeID) ParentRef {
	return ParentRef{id: id, valid: true}
}

// IsRoot reports whether the reference points at the top of the tree.
func (p ParentRef) IsRoot() bool {
	return !p.valid
}

// ID returns the referenced node id. ok is false for Root.
func (p ParentRef) ID() (id NodeID, ok bool) {
	return p.id, p.valid
}

func (p ParentRef) String() string {
	if !p.valid {
		return "root"
	}
	return p.id.String()
}

// Node is one entry in a namespace's classification tree.
type Node struct {
	ID        NodeID
	Name      string
	Parent    ParentRef
	Namespace string
}

// Query selects nodes by exact display name within a namespace.
type Query struct {
	Namespace string
	Name      string

	// Parent restricts results to direct children of the referenced node.
	// nil means any position in the tree.
	Parent *ParentRef

	// IncludeUnused also returns nodes that are not attached to any object.
	IncludeUnused bool
}

// Store is the read side of a classification catalog.
type Store interface {
	// FindByName returns one node with the exact display name. When several
	// exist, which one is returned is up to the implementation.
	FindByName(ctx context.Context, namespace, name string) (Node, bool, error)

	// FindAll returns every node matching q in the store's natural order.
	FindAll(ctx context.Context, q Query) ([]Node, error)

	// Get fetches a node by id.
	Get(ctx context.Context, id NodeID) (Node, error)
}

// Assignment is the set of terms to attach to one object in one namespace.
type Assignment struct {
	ProductID int64
	SKU       string
	Namespace string
	TermIDs   []NodeID
}
