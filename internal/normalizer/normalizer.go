// Package normalizer turns OCR text from "Top Artists / Top Songs" screenshots
// into a [models.UserMusicProfile].
//
// Two screenshot layouts are understood. The combined layout prints one
// header, "Top Artists Top Songs", followed by rows of the form
// "1 <artist> 1 <song>". The dual layout is read as two regions, one headed
// "Top Artists" and the other "Top Songs", each followed by "1 <name>" rows.
//
// Parsing never fails: text that cannot be structured comes back as an
// unstructured [models.ParseResult] holding the whitespace-collapsed input.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const (
	combinedHeader = "Top Artists Top Songs"
	artistsHeader  = "Top Artists"
	songsHeader    = "Top Songs"
)

var (
	// rank N surrounded by whitespace, N = 1..6; 6 only marks the end of a list
	rankMarkers = compileRanks(6, `\s+%d\s+`)
	// "N <artist> N " on one row of the combined layout
	pairMarkers = compileRanks(models.ProfileSize, `\s+%d\s+\D+?\s+%[1]d\s+`)
	pairRows    = compileRanks(models.ProfileSize, `^%d\s+(.+?)\s+%[1]d\s+(.+)$`)
	leadingRank = regexp.MustCompile(`^\d+\s*`)

	// sections printed after the lists
	boundaries = []*regexp.Regexp{
		regexp.MustCompile(`\s*Minutes Listened`),
		regexp.MustCompile(`\s*Top Genre`),
	}
)

func compileRanks(n int, pattern string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, n)
	for i := range n {
		res[i] = regexp.MustCompile(fmt.Sprintf(pattern, i+1))
	}
	return res
}

// Parse dispatches on the extraction's layout.
func Parse(raw models.RawExtraction) models.ParseResult {
	if raw.Layout == models.LayoutDual {
		return ParseDual(raw.Text, raw.Right)
	}
	return ParseCombined(raw.Text)
}

// Require returns the profile of a structured result. An unstructured result
// is reported as [shared.ErrParseFailure] carrying the first characters of
// the cleaned text.
func Require(r models.ParseResult) (models.UserMusicProfile, error) {
	if p, ok := r.Profile(); ok {
		return p, nil
	}
	raw := []rune(r.Raw())
	if len(raw) > 40 {
		raw = append(raw[:40], '…')
	}
	return models.UserMusicProfile{}, fmt.Errorf("%w: no 5+5 block found in %q", shared.ErrParseFailure, string(raw))
}

// ParseCombined parses text from a single region carrying both lists.
func ParseCombined(text string) models.ParseResult {
	cleaned := Clean(text)
	body, ok := fromHeader(cleaned, combinedHeader)
	if !ok {
		return models.Unstructured(cleaned)
	}

	pos := 0
	for _, re := range pairMarkers {
		body, pos = breakBefore(body, re, pos)
	}
	body = breakBoundaries(body, pos)

	lines := splitLines(body)
	if len(lines) < models.ProfileSize+1 {
		return models.Unstructured(cleaned)
	}

	var profile models.UserMusicProfile
	for i, line := range lines[1 : models.ProfileSize+1] {
		m := pairRows[i].FindStringSubmatch(line)
		if m == nil {
			return models.Unstructured(cleaned)
		}
		artist := strings.TrimSpace(m[1])
		song := strings.TrimSpace(m[2])
		if artist == "" || song == "" {
			return models.Unstructured(cleaned)
		}
		profile.TopArtists = append(profile.TopArtists, artist)
		profile.TopSongs = append(profile.TopSongs, song)
	}

	return models.Structured(profile)
}

// ParseDual parses the two regions of the dual layout. left must contain the
// "Top Artists" header and right the "Top Songs" header.
func ParseDual(left, right string) models.ParseResult {
	l, r := Clean(left), Clean(right)
	raw := strings.TrimSpace(l + "\n\n" + r)

	artists, ok := column(l, artistsHeader)
	if !ok {
		return models.Unstructured(raw)
	}
	songs, ok := column(r, songsHeader)
	if !ok {
		return models.Unstructured(raw)
	}

	return models.Structured(models.UserMusicProfile{TopArtists: artists, TopSongs: songs})
}

// column reads the five ranked entries that follow header.
func column(text, header string) ([]string, bool) {
	body, ok := fromHeader(text, header)
	if !ok {
		return nil, false
	}

	pos := 0
	for _, re := range rankMarkers {
		body, pos = breakBefore(body, re, pos)
	}
	body = breakBoundaries(body, pos)

	lines := splitLines(body)
	if len(lines) < models.ProfileSize+1 {
		return nil, false
	}

	items := make([]string, 0, models.ProfileSize)
	for _, line := range lines[1 : models.ProfileSize+1] {
		item := strings.TrimSpace(leadingRank.ReplaceAllString(line, ""))
		if item == "" {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

// Clean collapses every whitespace run to a single space and trims the ends.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// fromHeader drops everything before the first header and puts the header on
// its own line.
func fromHeader(text, header string) (string, bool) {
	idx := strings.Index(text, header)
	if idx < 0 {
		return "", false
	}
	return header + "\n" + text[idx+len(header):], true
}

// breakBefore inserts a line break before the first match of re at or after
// from. It returns the new text and the offset to continue searching from, so
// successive markers are only looked for after the previous one.
func breakBefore(text string, re *regexp.Regexp, from int) (string, int) {
	loc := re.FindStringIndex(text[from:])
	if loc == nil {
		return text, from
	}
	at := from + loc[0]
	return text[:at] + "\n" + text[at:], at + 1
}

func breakBoundaries(text string, from int) string {
	for _, re := range boundaries {
		text, _ = breakBefore(text, re, from)
	}
	return text
}

func splitLines(text string) []string {
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
