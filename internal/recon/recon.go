// Package recon classifies decoded statement entries against the recorded
// ledger: each entry is already present (matched), present more than once
// (ambiguous) or absent (not found). The matcher is a pure read-and-compare
// operation with no side effects; the caller owns the comparison window and
// decides what to do with each classification.
package recon

import (
	"fmt"
	"sort"
	"time"

	"github.com/ledgerscope/ledgerscope/internal/domain"
	"github.com/ledgerscope/ledgerscope/internal/transform"
)

// MatchStatus classifies one decoded entry against the ledger
type MatchStatus string

const (
	// StatusMatched means exactly one ledger transaction matched
	StatusMatched MatchStatus = "matched"
	// StatusAmbiguous means more than one candidate matched. Never
	// auto-resolved: picking one silently would corrupt the ledger.
	StatusAmbiguous MatchStatus = "ambiguous"
	// StatusNotFound means no ledger transaction matched
	StatusNotFound MatchStatus = "not_found"
)

// MatchResult is the per-entry classification. Results are transient
// comparison artifacts: created fresh on every run, never persisted.
type MatchResult struct {
	Status   MatchStatus
	LedgerID string // set when Status is StatusMatched

	// CandidateIDs lists every matching ledger transaction when Status is
	// StatusAmbiguous, ordered with description-similar candidates first as
	// a review hint. The order is informational only; resolution is the
	// caller's decision.
	CandidateIDs []string
}

// Counts aggregates a reconciliation run for reporting
type Counts struct {
	Matched   int
	Ambiguous int
	NotFound  int
}

// Result holds one MatchResult per decoded entry, in input order
type Result struct {
	Results []MatchResult
	Counts  Counts
}

// NotFoundEntries filters the given entries down to the not-found subset.
// Entries must be the same slice (same order) the result was computed from.
func (r *Result) NotFoundEntries(entries []domain.StatementEntry) ([]domain.StatementEntry, error) {
	if len(entries) != len(r.Results) {
		return nil, fmt.Errorf("entry count %d does not match result count %d (results must be filtered against the entries they were computed from)", len(entries), len(r.Results))
	}
	var notFound []domain.StatementEntry
	for i, res := range r.Results {
		if res.Status == StatusNotFound {
			notFound = append(notFound, entries[i])
		}
	}
	return notFound, nil
}

// Matcher compares decoded entries against ledger transactions. Candidates
// must match amount and direction exactly; dates may differ by up to the
// configured tolerance in days (zero means exact-day matching).
type Matcher struct {
	toleranceDays int
}

// New creates a matcher with the given date tolerance in days
func New(toleranceDays int) (*Matcher, error) {
	if toleranceDays < 0 {
		return nil, fmt.Errorf("date tolerance must be >= 0 days, got %d", toleranceDays)
	}
	return &Matcher{toleranceDays: toleranceDays}, nil
}

// Reconcile classifies every decoded entry against the ledger snapshot.
// The snapshot should already be scoped to one user (and optionally one
// account) for a period covering the entries; the matcher does not choose
// the window. Reconciling the same batch against an unchanged ledger always
// yields the same classifications.
func (m *Matcher) Reconcile(entries []domain.StatementEntry, ledger []domain.LedgerTransaction) *Result {
	result := &Result{Results: make([]MatchResult, 0, len(entries))}

	for i := range entries {
		entry := &entries[i]
		var candidates []*domain.LedgerTransaction
		for j := range ledger {
			txn := &ledger[j]
			// decimal.Equal compares values, not representations, so
			// "123.45" and "123.450" match
			if txn.Direction != entry.Direction() || !txn.Amount.Equal(entry.Amount()) {
				continue
			}
			if withinTolerance(entry.Date(), txn.CompetenceDate, m.toleranceDays) {
				candidates = append(candidates, txn)
			}
		}

		switch len(candidates) {
		case 0:
			result.Results = append(result.Results, MatchResult{Status: StatusNotFound})
			result.Counts.NotFound++
		case 1:
			result.Results = append(result.Results, MatchResult{
				Status:   StatusMatched,
				LedgerID: candidates[0].ID,
			})
			result.Counts.Matched++
		default:
			result.Results = append(result.Results, MatchResult{
				Status:       StatusAmbiguous,
				CandidateIDs: orderCandidates(entry, candidates),
			})
			result.Counts.Ambiguous++
		}
	}

	return result
}

// withinTolerance reports whether two calendar dates are at most tolerance
// days apart
func withinTolerance(a, b time.Time, toleranceDays int) bool {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days <= toleranceDays
}

// orderCandidates returns candidate IDs for an ambiguous result, with
// candidates whose normalized description equals the entry's listed first,
// then by competence date and ID for determinism. This ordering is a review
// hint only; the matcher never picks among multiple candidates.
func orderCandidates(entry *domain.StatementEntry, candidates []*domain.LedgerTransaction) []string {
	entryDesc := transform.NormalizeDescription(entry.Description())

	sorted := make([]*domain.LedgerTransaction, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		si := transform.NormalizeDescription(sorted[i].Description) == entryDesc
		sj := transform.NormalizeDescription(sorted[j].Description) == entryDesc
		if si != sj {
			return si
		}
		if !sorted[i].CompetenceDate.Equal(sorted[j].CompetenceDate) {
			return sorted[i].CompetenceDate.Before(sorted[j].CompetenceDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	ids := make([]string, len(sorted))
	for i, txn := range sorted {
		ids[i] = txn.ID
	}
	return ids
}
