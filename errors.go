package topoc

import (
	"fmt"
	"strings"
)

// CheckKind names a validator check. Validation errors are grouped by check
// kind so a caller sees every offending node of the first failing kind.
type CheckKind string

const (
	// CheckCIDR covers subnet CIDR containment and sibling overlap.
	CheckCIDR CheckKind = "cidr"
	// CheckReachability covers tier routing policy: public subnets must
	// route to an InternetGateway, private non-isolated subnets to a
	// NatGateway.
	CheckReachability CheckKind = "reachability"
	// CheckReference covers dangling weak references.
	CheckReference CheckKind = "reference"
	// CheckPolicy covers policy-rule well-formedness.
	CheckPolicy CheckKind = "policy"
)

// SchemaError reports a malformed or incomplete topology intent. It is never
// retried; the caller must fix the intent document.
type SchemaError struct {
	// Field is the path of the offending field in the intent document,
	// e.g. "subnets[1].cidr".
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at %s: %s", e.Field, e.Reason)
}

// ValidationError reports a semantic violation of the network invariants.
// NodeIDs lists every node that fails the check, sorted.
type ValidationError struct {
	Check   CheckKind
	NodeIDs []string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed [%s]: %s (nodes: %s)",
		e.Check, e.Reason, strings.Join(e.NodeIDs, ", "))
}

// CycleError reports a dependency cycle found during emission. The builder
// produces acyclic graphs by construction, so a cycle means a defect in the
// builder or a hand-constructed graph.
type CycleError struct {
	// NodeIDs traces the cycle in dependency order.
	NodeIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.NodeIDs, " → "))
}
