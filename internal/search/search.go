package search

import (
	"fmt"
	"slices"
	"strings"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

// Scope gates which source collections a query scans.
type Scope string

const (
	ScopeAll     Scope = "All"
	ScopeIssues  Scope = "Issues"
	ScopeBodies  Scope = "Bodies"
	ScopeRegions Scope = "Regions"
)

// ParseScope accepts a scope name in any case. Blank means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "issues":
		return ScopeIssues, nil
	case "bodies", "ministries":
		return ScopeBodies, nil
	case "regions", "districts":
		return ScopeRegions, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown search scope %q", s), "scope")
	}
}

func (s Scope) includes(part Scope) bool {
	return s == ScopeAll || s == "" || s == part
}

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultIssue  ResultType = "issue"
	ResultBody   ResultType = "body"
	ResultRegion ResultType = "region"
)

// Facets narrow issue results. An empty set places no constraint. Bodies and
// regions ignore facets.
type Facets struct {
	Statuses   []store.Status
	Categories []store.Category
}

func (f Facets) admits(issue store.Issue) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, issue.Status) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, issue.Category) {
		return false
	}
	return true
}

// Query describes a search request.
type Query struct {
	Text   string
	Scope  Scope
	Facets Facets
}

// Corpus is the read-only input the engine scans.
type Corpus struct {
	Issues  []store.Issue
	Bodies  []store.Ministry
	Regions []store.District
}

// Result is a single search hit. Exactly one of Issue, Body or Region is set.
type Result struct {
	Type    ResultType      `json:"type"`
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Snippet string          `json:"snippet"`
	Issue   *store.Issue    `json:"-"`
	Body    *store.Ministry `json:"-"`
	Region  *store.District `json:"-"`
}

// Search scans the corpus for a case-insensitive substring match. Results are
// issues, then bodies, then regions, each in corpus order. Blank text
// matches nothing.
func Search(corpus Corpus, q Query) []Result {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	results := []Result{}
	if needle == "" {
		return results
	}

	if q.Scope.includes(ScopeIssues) {
		for i := range corpus.Issues {
			issue := corpus.Issues[i]
			if !matchesAny(needle, issue.Title, issue.Summary, issue.Description) || !q.Facets.admits(issue) {
				continue
			}
			results = append(results, Result{Type: ResultIssue, ID: issue.ID, Title: issue.Title, Snippet: issue.Summary, Issue: &issue})
		}
	}
	if q.Scope.includes(ScopeBodies) {
		for i := range corpus.Bodies {
			body := corpus.Bodies[i]
			if !matchesAny(needle, body.Name, body.Description) {
				continue
			}
			results = append(results, Result{Type: ResultBody, ID: body.ID, Title: body.Name, Snippet: body.Description, Body: &body})
		}
	}
	if q.Scope.includes(ScopeRegions) {
		for i := range corpus.Regions {
			region := corpus.Regions[i]
			if !matchesAny(needle, region.Name, region.Region) {
				continue
			}
			results = append(results, Result{Type: ResultRegion, ID: region.ID, Title: region.Name, Snippet: region.Region, Region: &region})
		}
	}
	return results
}

func matchesAny(needle string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
