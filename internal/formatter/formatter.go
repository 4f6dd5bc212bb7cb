// package formatter exports generated playlists to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
)

const playlistURL = "https://open.spotify.com/playlist/"

// Export is a generated playlist and the entries it was built from.
type Export struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	PlaylistID  string                 `json:"playlistId,omitempty"`
	Entries     []models.PlaylistEntry `json:"-"`
}

// FromRun builds an Export from a stored run.
func FromRun(run *models.Run, name string) *Export {
	return &Export{Name: name, PlaylistID: run.PlaylistID, Entries: run.Tracks}
}

// URL returns the playlist's web link, or "" for a dry run.
func (e *Export) URL() string {
	if e.PlaylistID == "" {
		return ""
	}
	return playlistURL + e.PlaylistID
}

func (e *Export) baseName() string {
	if e.PlaylistID != "" {
		return e.PlaylistID
	}
	return "squadwrap"
}

// ExportToCSV converts an Export to CSV format with columns: Position, Track ID, URI, Title, Artists, Source, Query
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Track ID", "URI", "Title", "Artists", "Source", "Query"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, entry := range export.Entries {
		record := []string{
			strconv.Itoa(i + 1),
			entry.Track.ID,
			entry.Track.URI,
			entry.Track.Name,
			strings.Join(entry.Track.ArtistNames(), ", "),
			string(entry.Source),
			entry.Query,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown with a link to the playlist
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Name))

	if url := export.URL(); url != "" {
		buf.WriteString(fmt.Sprintf("[Open in Spotify](%s)\n\n", url))
	}

	if export.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", export.Description))
	}

	songs, artists := countSources(export.Entries)
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(export.Entries)))
	buf.WriteString(fmt.Sprintf("**From top songs**: %d\n", songs))
	buf.WriteString(fmt.Sprintf("**From top artists**: %d\n\n", artists))

	buf.WriteString("## Tracks\n\n")
	for i, entry := range export.Entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s _(%s: %s)_\n",
			i+1, strings.Join(entry.Track.ArtistNames(), ", "), entry.Track.Name, entry.Source, entry.Query))
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", export.Name))
	if url := export.URL(); url != "" {
		buf.WriteString(fmt.Sprintf("URL: %s\n", url))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(export.Entries)))

	for i, entry := range export.Entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, strings.Join(entry.Track.ArtistNames(), ", "), entry.Track.Name))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(export *Export) ([]byte, error) {
	songs, artists := countSources(export.Entries)
	meta := struct {
		*Export
		URL         string `json:"url,omitempty"`
		TrackCount  int    `json:"trackCount"`
		SongCount   int    `json:"songCount"`
		ArtistCount int    `json:"artistCount"`
	}{export, export.URL(), len(export.Entries), songs, artists}
	return json.MarshalIndent(meta, "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *Export, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.baseName()
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a playlist to {dir}/README.md.
//
// Directory name defaults to the playlist ID.
func WriteMarkdownExport(export *Export, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.baseName()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {playlist ID}_tracks.txt as the filename.
func WriteTextExport(export *Export, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", export.baseName())
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// Write exports in the named format ("csv", "md", "markdown", "txt", "text")
// and returns the files it created.
func Write(export *Export, format, output string) ([]string, error) {
	switch strings.ToLower(format) {
	case "csv":
		res, err := WriteCSVExport(export, output)
		if err != nil {
			return nil, err
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case "md", "markdown":
		file, err := WriteMarkdownExport(export, output)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	case "txt", "text":
		file, err := WriteTextExport(export, output)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func countSources(entries []models.PlaylistEntry) (songs, artists int) {
	for _, e := range entries {
		switch e.Source {
		case models.SourceSong:
			songs++
		case models.SourceArtist:
			artists++
		}
	}
	return songs, artists
}
