// Package linker attaches purchase orders to jobs by looking for job numbers
// in the PO's free-text fields. It is a heuristic: the backend has no
// foreign key between the two, and SAP exports put the job number wherever
// the buyer typed it.
package linker

import (
	"sort"
	"strings"

	"opsboard/internal/models"
)

// minSuffixLen keeps short suffixes like the "1" of "J-1" from matching
// every PO that contains the digit.
const minSuffixLen = 3

// haystack is the lower-cased concatenation of a PO's searchable fields.
func haystack(po models.PurchaseOrder) string {
	return strings.ToLower(strings.Join([]string{
		po.PONumber, po.Description, po.Notes, po.Reference, po.Vendor,
	}, " "))
}

// suffix returns the part of a job number after its last "-", or "" when
// there is none worth matching on.
func suffix(jobNumber string) string {
	i := strings.LastIndex(jobNumber, "-")
	if i < 0 {
		return ""
	}
	s := strings.TrimSpace(jobNumber[i+1:])
	if len(s) < minSuffixLen {
		return ""
	}
	return s
}

// Matcher holds the job numbers to match against, sorted so the first match
// is stable across runs.
type Matcher struct {
	jobs []string
}

// NewMatcher prepares jobNumbers for matching. Blank numbers are dropped.
func NewMatcher(jobNumbers []string) *Matcher {
	jobs := make([]string, 0, len(jobNumbers))
	for _, j := range jobNumbers {
		if j = strings.TrimSpace(j); j != "" {
			jobs = append(jobs, j)
		}
	}
	sort.Strings(jobs)
	return &Matcher{jobs: jobs}
}

// Match returns the job a PO refers to. A full job number anywhere in the
// text beats a suffix match; within each pass the lowest job number wins.
func (m *Matcher) Match(po models.PurchaseOrder) (string, bool) {
	text := haystack(po)
	for _, j := range m.jobs {
		if strings.Contains(text, strings.ToLower(j)) {
			return j, true
		}
	}
	for _, j := range m.jobs {
		if s := suffix(j); s != "" && strings.Contains(text, strings.ToLower(s)) {
			return j, true
		}
	}
	return "", false
}

// Plan decides links for every PO that has none yet. POs that already carry
// a job_id are left alone, so running Plan over its own output links nothing
// new.
func (m *Matcher) Plan(pos []models.PurchaseOrder) models.LinkResult {
	res := models.LinkResult{Links: map[string]string{}}
	for _, po := range pos {
		if strings.TrimSpace(po.JobID) != "" {
			continue
		}
		res.Scanned++
		if job, ok := m.Match(po); ok {
			res.Links[po.PONumber] = job
			res.Linked++
		} else {
			res.Unmatched++
		}
	}
	return res
}
