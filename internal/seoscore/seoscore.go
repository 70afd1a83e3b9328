// Package seoscore reads the SEO score an item got from one of the two SEO
// plugins and normalises it to a single record.
package seoscore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/nexus/internal/meta"
)

// MaxIssues caps the issue messages kept per record.
const MaxIssues = 3

// Source names the provider a record came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceRankMath Source = "rankmath"
	SourceYoast    Source = "yoast"
)

// yoastNotApplicable is the score Yoast stores when it has not rated an item.
const yoastNotApplicable = "na"

// Record is the normalised score of one item.
type Record struct {
	Score    int
	HasScore bool
	Source   Source
	Issues   []string
}

// Band returns the band of the record's score, or "" without a score.
func (r Record) Band() string {
	if !r.HasScore {
		return ""
	}
	return Band(r.Score)
}

// Band maps a score to good, ok or poor.
func Band(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 50:
		return "ok"
	default:
		return "poor"
	}
}

// Resolver reads scores through the metadata accessor.
type Resolver struct {
	acc *meta.Accessor
}

// NewResolver creates a Resolver.
func NewResolver(acc *meta.Accessor) *Resolver {
	return &Resolver{acc: acc}
}

// Resolve returns the first present score: Rank Math, then Yoast.
func (r *Resolver) Resolve(ctx context.Context, id int64) (Record, error) {
	rm, err := r.acc.RankMath(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("reading rank math fields of item %d: %w", id, err)
	}
	if score, ok := meta.ParseScore(rm.Score); ok {
		return Record{
			Score:    score,
			HasScore: true,
			Source:   SourceRankMath,
			Issues:   messages(rm.Validation, "message"),
		}, nil
	}

	y, err := r.acc.Yoast(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("reading yoast fields of item %d: %w", id, err)
	}
	if y.Score != yoastNotApplicable {
		if score, ok := meta.ParseScore(y.Score); ok {
			return Record{
				Score:    score,
				HasScore: true,
				Source:   SourceYoast,
				Issues:   messages(y.Results, "msg"),
			}, nil
		}
	}

	return Record{Source: SourceNone, Issues: []string{}}, nil
}

// messages decodes a JSON array of objects and returns the string values of
// field, in array order, capped at MaxIssues. Anything undecodable yields none.
func messages(raw, field string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return out
	}
	for _, e := range entries {
		if len(out) == MaxIssues {
			break
		}
		if msg, ok := e[field].(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
