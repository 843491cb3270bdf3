package match

import "github.com/kunalmkv/ringbav2-sub000/internal/model"

// Index groups routing-ledger calls by (category, normalized caller id) for
// O(1) candidate retrieval during matching. Built in one linear scan.
type Index struct {
	byKey map[string]map[string][]*model.RoutedCall

	// invalid holds records excluded from indexing because no caller id
	// could be resolved. They are reported, never silently dropped.
	invalid []*model.RoutedCall
}

// NewIndex builds an Index from routing-ledger calls. Records with an empty
// normalized caller id are collected into Invalid instead of being indexed.
func NewIndex(calls []*model.RoutedCall) *Index {
	idx := &Index{byKey: make(map[string]map[string][]*model.RoutedCall)}
	for _, c := range calls {
		if c.CallerIDE164 == "" {
			idx.invalid = append(idx.invalid, c)
			continue
		}
		byCaller, ok := idx.byKey[c.Category]
		if !ok {
			byCaller = make(map[string][]*model.RoutedCall)
			idx.byKey[c.Category] = byCaller
		}
		byCaller[c.CallerIDE164] = append(byCaller[c.CallerIDE164], c)
	}
	return idx
}

// Candidates returns the routing-ledger calls sharing category and caller
// id, in insertion order. Nil when none exist.
func (idx *Index) Candidates(cat, callerE164 string) []*model.RoutedCall {
	byCaller, ok := idx.byKey[cat]
	if !ok {
		return nil
	}
	return byCaller[callerE164]
}

// Invalid returns the records excluded for lacking a resolvable caller id.
func (idx *Index) Invalid() []*model.RoutedCall {
	return idx.invalid
}

// Size returns the number of indexed records.
func (idx *Index) Size() int {
	n := 0
	for _, byCaller := range idx.byKey {
		for _, calls := range byCaller {
			n += len(calls)
		}
	}
	return n
}
