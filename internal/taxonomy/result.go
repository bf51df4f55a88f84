package taxonomy

import "fmt"

// FailureKind classifies why a value could not be resolved.
type FailureKind int

const (
	// NotFound means no node matches the requested name at all.
	NotFound FailureKind = iota
	// HierarchyMismatch means a same-named node exists, but not under the
	// parent the path requires.
	HierarchyMismatch
	// DuplicateName means a bare name matched more than one node.
	DuplicateName

	numFailureKinds
)

// FailureKinds lists every kind in report order.
var FailureKinds = [numFailureKinds]FailureKind{NotFound, HierarchyMismatch, DuplicateName}

func (k FailureKind) String() string {
	switch k {
	case NotFound:
		return "terms_not_found"
	case HierarchyMismatch:
		return "hierarchy_mismatch"
	case DuplicateName:
		return "duplicate_terms"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Label returns the report heading for the kind.
func (k FailureKind) Label() string {
	switch k {
	case NotFound:
		return "Terms not found"
	case HierarchyMismatch:
		return "Hierarchy mismatches"
	case DuplicateName:
		return "Duplicate terms found"
	default:
		return k.String()
	}
}

func (k FailureKind) valid() bool {
	return k >= 0 && k < numFailureKinds
}

// Failure describes a value that could not be resolved.
// It implements error so callers may wrap or log it, but the resolver
// returns it as data, never as an error.
type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f *Failure) Error() string {
	return f.Kind.String() + ": " + f.Detail
}

// Result is the outcome of one resolution: either a node or a failure.
type Result struct {
	Node    Node
	Failure *Failure
}

// Resolved returns a successful result.
func Resolved(n Node) Result {
	return Result{Node: n}
}

// Failed returns a failed result.
func Failed(kind FailureKind, detail string) Result {
	return Result{Failure: &Failure{Kind: kind, Detail: detail}}
}

// OK reports whether the value resolved to a node.
func (r Result) OK() bool {
	return r.Failure == nil
}
