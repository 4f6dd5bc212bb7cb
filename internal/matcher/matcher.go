// Package matcher scores catalog track names against OCR song titles.
//
// Distances are Levenshtein edit distances over runes with case folded and
// unit costs for insertion, deletion and substitution. A candidate is
// relevant when its distance is within [Threshold] of the query.
package matcher

import (
	"strings"

	"github.com/adrg/strutil/metrics"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
)

func levenshtein() *metrics.Levenshtein {
	m := metrics.NewLevenshtein()
	m.CaseSensitive = false
	m.InsertCost = 1
	m.DeleteCost = 1
	m.ReplaceCost = 1
	return m
}

// Distance returns the case-insensitive edit distance between a and b.
// It is symmetric, never negative and at most the longer string's rune count.
func Distance(a, b string) int {
	return levenshtein().Distance(a, b)
}

// Threshold is the largest distance still considered relevant for a query:
// one tenth of its rune count, rounded down.
func Threshold(query string) int {
	return len([]rune(query)) / 10
}

// Relevance compares q against a candidate name. For a truncated query only
// the candidate's prefix of the same rune length is compared, so a title
// cut off by the screenshot still matches its full catalog name.
func Relevance(q models.SongQuery, candidate string) (int, bool) {
	title := strings.TrimSpace(q.Title)
	name := strings.TrimSpace(candidate)

	if q.Truncated {
		if r := []rune(name); len(r) > len([]rune(title)) {
			name = string(r[:len([]rune(title))])
		}
	}

	d := Distance(title, name)
	return d, d <= Threshold(title)
}

// Score evaluates every candidate against q, preserving candidate order.
func Score(q models.SongQuery, candidates []models.CandidateTrack) []models.MatchResult {
	results := make([]models.MatchResult, len(candidates))
	for i, c := range candidates {
		d, ok := Relevance(q, c.Name)
		results[i] = models.MatchResult{Track: c, Distance: d, IsRelevant: ok}
	}
	return results
}

// Best picks from scored results: the first relevant candidate credited to
// one of affinity wins outright; otherwise the relevant candidate with the
// smallest distance (earliest on ties); otherwise the first result.
// It returns false only when results is empty.
func Best(results []models.MatchResult, affinity []string) (models.MatchResult, bool) {
	if len(results) == 0 {
		return models.MatchResult{}, false
	}

	best := -1
	for i, r := range results {
		if !r.IsRelevant {
			continue
		}
		if r.Track.HasArtist(affinity) {
			return r, true
		}
		if best < 0 || r.Distance < results[best].Distance {
			best = i
		}
	}

	if best >= 0 {
		return results[best], true
	}
	return results[0], true
}
