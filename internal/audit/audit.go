// Package audit finds published items whose SEO metadata is incomplete.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/logger"
	"github.com/TobiSchelling/nexus/internal/meta"
)

// ErrUnknownIssue is returned for an issue filter that names no check.
var ErrUnknownIssue = errors.New("unknown issue code")

// Issue codes, in check order.
const (
	NoTags            = "no_tags"
	NoRankMathKeyword = "no_rankmath_keyword"
	LowRankMathScore  = "low_rankmath_score"
	NoInternalLinks   = "no_internal_links"
	NoSEOTitle        = "no_seo_title"
	NotIndexed        = "not_indexed"
)

// unanalysedScore is what Rank Math stores before the first analysis.
const unanalysedScore = "0"

// robotsIndexOn is the advanced robots value that means "index".
const robotsIndexOn = "on"

// IssueFilter is one option of the audit filter.
type IssueFilter struct {
	Code  string
	Label string
}

// Filters lists the filter options in check order. The empty code means all.
var Filters = []IssueFilter{
	{"", "All Issues"},
	{NoTags, "No Tags"},
	{NoRankMathKeyword, "No RankMath Keyword"},
	{LowRankMathScore, "Low RankMath Score"},
	{NoInternalLinks, "No Internal Links"},
	{NoSEOTitle, "No SEO Title"},
	{NotIndexed, "Not Indexed"},
}

// ValidIssue reports whether code names a check.
func ValidIssue(code string) bool {
	for _, f := range Filters[1:] {
		if f.Code == code {
			return true
		}
	}
	return false
}

// Issue is one failed check.
type Issue struct {
	Code  string
	Label string
}

// Finding is an item with at least one issue.
type Finding struct {
	Item   content.Item
	Issues []Issue
}

// Has reports whether the finding carries the issue code.
func (f Finding) Has(code string) bool {
	for _, is := range f.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

// Query selects a page of findings. Page is 1-based.
type Query struct {
	Page     int
	PageSize int
	Issue    string
}

// Report is one page of findings.
type Report struct {
	Items      []Finding
	Total      int
	TotalPages int
	Page       int
	// ByIssue counts findings per issue code over the whole collection,
	// ignoring the filter.
	ByIssue map[string]int
}

// Options configure an Engine.
type Options struct {
	SiteURL           string
	LowScoreThreshold int
	PageSize          int
}

// Engine evaluates the checks against the Content Store.
type Engine struct {
	store content.Store
	acc   *meta.Accessor
	opts  Options
	log   *logger.Logger
}

// NewEngine creates an Engine. Zero options fall back to a threshold of 75
// and pages of 20.
func NewEngine(store content.Store, opts Options, log *logger.Logger) *Engine {
	if opts.LowScoreThreshold <= 0 {
		opts.LowScoreThreshold = 75
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return &Engine{
		store: store,
		acc:   meta.NewAccessor(store),
		opts:  opts,
		log:   logger.OrDiscard(log),
	}
}

// FindIncomplete evaluates every published item of a public content type,
// keeps those with issues (and the filtered issue, when given), then returns
// the requested page.
func (e *Engine) FindIncomplete(ctx context.Context, q Query) (*Report, error) {
	if q.Issue != "" && !ValidIssue(q.Issue) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIssue, q.Issue)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = e.opts.PageSize
	}

	items, err := e.store.QueryItems(ctx, content.PublishedPublic())
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}

	report := &Report{Page: q.Page, ByIssue: make(map[string]int)}
	var matched []Finding
	for _, it := range items {
		issues, err := e.Check(ctx, it)
		if err != nil {
			return nil, err
		}
		if len(issues) == 0 {
			continue
		}
		f := Finding{Item: it, Issues: issues}
		for _, is := range issues {
			report.ByIssue[is.Code]++
		}
		if q.Issue != "" && !f.Has(q.Issue) {
			continue
		}
		matched = append(matched, f)
	}

	report.Total = len(matched)
	report.TotalPages = max(1, (report.Total+q.PageSize-1)/q.PageSize)

	start := (q.Page - 1) * q.PageSize
	end := min(start+q.PageSize, len(matched))
	report.Items = []Finding{}
	if start < len(matched) {
		report.Items = matched[start:end]
	}

	e.log.Debug("audit evaluated",
		"items", len(items), "findings", report.Total, "issue", q.Issue, "page", q.Page)
	return report, nil
}

// Check runs the six checks against one item, in fixed order.
func (e *Engine) Check(ctx context.Context, it content.Item) ([]Issue, error) {
	tags, err := e.store.ItemTags(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("reading tags of item %d: %w", it.ID, err)
	}
	rm, err := e.acc.RankMath(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("reading rank math fields of item %d: %w", it.ID, err)
	}

	issues := []Issue{}
	if len(tags) == 0 {
		issues = append(issues, Issue{NoTags, "No Tags"})
	}
	if rm.FocusKeyword == "" {
		issues = append(issues, Issue{NoRankMathKeyword, "No RankMath Keyword"})
	}
	if score, ok := meta.ParseScore(rm.Score); ok && rm.Score != unanalysedScore && score < e.opts.LowScoreThreshold {
		issues = append(issues, Issue{LowRankMathScore, fmt.Sprintf("Low RankMath Score: %d", score)})
	}
	if !HasInternalLink(it.ContentBody, e.opts.SiteURL) {
		issues = append(issues, Issue{NoInternalLinks, "No Internal Links"})
	}
	if rm.Title == "" {
		issues = append(issues, Issue{NoSEOTitle, "No SEO Title"})
	}
	if rm.AdvancedRobots != robotsIndexOn {
		issues = append(issues, Issue{NotIndexed, "Not Indexed"})
	}
	return issues, nil
}
