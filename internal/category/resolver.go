// Package category maps call-routing identifiers from the routing ledger to
// the closed set of logical category labels used as the hard match
// partition.
package category

// Category labels. A mismatch between the two ledgers is an absolute
// non-match, checked before any numeric comparison.
const (
	Static = "STATIC"
	API    = "API"
)

// Resolver maps routing identifiers to category labels via an exact-match
// table constructed once per run.
type Resolver struct {
	byRoutingID map[string]string
}

// NewResolver builds a Resolver from the routing-id table supplied by
// configuration. The table is copied so later config mutation cannot leak
// into a running pass.
func NewResolver(table map[string]string) *Resolver {
	byID := make(map[string]string, len(table))
	for id, cat := range table {
		byID[id] = cat
	}
	return &Resolver{byRoutingID: byID}
}

// Resolve returns the category label for a routing id, or "" for an unknown
// id. Callers treat "" as an unconditional non-match; the record is
// reported, never silently dropped.
func (r *Resolver) Resolve(routingID string) string {
	return r.byRoutingID[routingID]
}

// Known reports whether a routing id resolves to a category.
func (r *Resolver) Known(routingID string) bool {
	_, ok := r.byRoutingID[routingID]
	return ok
}
