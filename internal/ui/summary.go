package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/tasks"
)

const playlistURL = "https://open.spotify.com/playlist/"

// RenderProgress formats a single progress update as one line.
func RenderProgress(update tasks.ProgressUpdate) string {
	var phase string
	switch update.Phase {
	case tasks.ValidateProfiles:
		phase = "Validating profiles"
	case tasks.ResolveSongs:
		phase = "Searching songs"
	case tasks.ResolveArtists:
		phase = "Searching artists"
	case tasks.CreatePlaylist:
		phase = "Creating playlist"
	case tasks.AddTracks:
		phase = "Adding tracks"
	case tasks.Done:
		return styles.ok.Render("✓ " + update.Message)
	default:
		phase = "Processing"
	}

	line := fmt.Sprintf("%s %s", styles.help.Render(phase+":"), update.Message)
	if strings.Contains(update.Message, "✗") {
		return styles.warn.Render(line)
	}
	return line
}

// RenderResult formats the outcome of a generation. err takes precedence over result.
func RenderResult(result *tasks.GenerateResult, err error) string {
	if err != nil {
		return styles.err.Render(fmt.Sprintf("Playlist generation failed: %v", err))
	}
	if result == nil {
		return styles.err.Render("No result available")
	}

	title := styles.title.Render("✓ Playlist Complete!")
	info := fmt.Sprintf(
		"Playlist: %s%s\nTracks: %d (%d from top songs, %d from top artists)\nProfiles: %d",
		playlistURL, result.PlaylistID,
		len(result.Entries), result.SongCount, result.ArtistCount,
		result.ProfileCount,
	)

	return title + "\n" + info + renderSkipped(result.AggregateResult)
}

// RenderAggregate formats a dry run: the tracks that would be added, without a playlist.
func RenderAggregate(agg *tasks.AggregateResult) string {
	if agg == nil {
		return styles.err.Render("No result available")
	}

	title := styles.title.Render(fmt.Sprintf("Dry run: %d tracks", len(agg.Entries)))

	var b strings.Builder
	for i, e := range agg.Entries {
		fmt.Fprintf(&b, "%3d. %s - %s %s\n",
			i+1, strings.Join(e.Track.ArtistNames(), ", "), e.Track.Name, styles.help.Render("("+string(e.Source)+")"))
	}

	return title + "\n" + strings.TrimRight(b.String(), "\n") + renderSkipped(agg)
}

func renderSkipped(agg *tasks.AggregateResult) string {
	if agg == nil {
		return ""
	}

	var out string
	if n := len(agg.InvalidProfiles); n > 0 {
		out += "\n\n" + styles.warn.Render(fmt.Sprintf("Skipped %d invalid profiles", n))
		for _, p := range agg.InvalidProfiles {
			out += fmt.Sprintf("\n  • profile %d", p+1)
		}
	}
	if n := len(agg.Skipped); n > 0 {
		out += "\n\n" + styles.warn.Render(fmt.Sprintf("Failed to resolve %d entries:", n))
		for _, s := range agg.Skipped {
			out += fmt.Sprintf("\n  • %s %q: %s", s.Source, s.Query, s.Reason)
		}
	}
	return out
}

// RenderParse formats a normalized screenshot. Unstructured text is shown
// as-is with a warning.
func RenderParse(result models.ParseResult) string {
	profile, ok := result.Profile()
	if !ok {
		warn := styles.warn.Render("Could not find Top Artists / Top Songs sections")
		return warn + "\n\n" + result.Raw()
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderList("Top Artists", profile.TopArtists),
		"    ",
		renderList("Top Songs", profile.TopSongs),
	)
}

func renderList(title string, items []string) string {
	lines := []string{styles.ok.Render(title)}
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderHistory formats stored runs as a table, newest first.
func RenderHistory(runs []*models.Run) string {
	if len(runs) == 0 {
		return styles.help.Render("No playlists generated yet")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "When", "Status", "Playlist", "Tracks", "Profiles")
	for _, r := range runs {
		playlist := r.PlaylistID
		if r.Status == models.RunFailed {
			playlist = r.Error
		}
		t.Row(
			strconv.Itoa(r.Sequence()),
			r.CreatedAt().Local().Format("2006-01-02 15:04"),
			string(r.Status),
			playlist,
			strconv.Itoa(r.SongCount+r.ArtistCount),
			strconv.Itoa(r.ProfileCount),
		)
	}
	return t.String()
}

// RenderTopTracks formats the most frequently resolved tracks.
func RenderTopTracks(tracks []models.ResolvedTrack) string {
	if len(tracks) == 0 {
		return styles.help.Render("No resolved tracks yet")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Hits", "Track", "Artists", "From")
	for _, rt := range tracks {
		t.Row(
			strconv.Itoa(rt.Hits),
			rt.Track.Name,
			strings.Join(rt.Track.ArtistNames(), ", "),
			fmt.Sprintf("%s: %s", rt.Kind, rt.Query),
		)
	}
	return t.String()
}

// RenderNowPlaying formats the account's current playback.
func RenderNowPlaying(np *models.NowPlaying) string {
	if np == nil || !np.IsPlaying {
		return styles.help.Render("Nothing playing")
	}
	line := fmt.Sprintf("♫ %s - %s", np.Artist, np.Title)
	if np.Album != "" {
		line += styles.help.Render(" (" + np.Album + ")")
	}
	return styles.ok.Render(line)
}
