package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

var ErrRunNotFound = errors.New("run not found")

// RunRepository implements models.Repository[*models.Run] and records which
// track each profile query resolved to.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run and its tracks in one transaction and assigns the next sequence.
func (r *RunRepository) Create(run *models.Run) error {
	return r.inTx(func(tx *sql.Tx) error { return r.insert(tx, run) })
}

// RecordRun persists run and bumps the hit count of every query → track
// resolution it contains.
func (r *RunRepository) RecordRun(run *models.Run) error {
	return r.inTx(func(tx *sql.Tx) error {
		if err := r.insert(tx, run); err != nil {
			return err
		}
		return r.recordResolutions(tx, run.Tracks)
	})
}

func (r *RunRepository) insert(tx *sql.Tx, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := nextSequence(tx, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	run.SetSequence(sequence)

	query := `
		INSERT INTO runs (id, sequence, playlist_id, profile_count, song_count, artist_count, skipped_count, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		run.ID(),
		sequence,
		run.PlaylistID,
		run.ProfileCount,
		run.SongCount,
		run.ArtistCount,
		run.SkippedCount,
		string(run.Status),
		run.Error,
		run.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_tracks (run_id, position, track_id, uri, name, source, query)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare run track insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range run.Tracks {
		if _, err := stmt.Exec(run.ID(), i, e.Track.ID, e.Track.URI, e.Track.Name, string(e.Source), e.Query); err != nil {
			return fmt.Errorf("failed to insert run track %d: %w", i, err)
		}
	}

	return nil
}

func (r *RunRepository) recordResolutions(tx *sql.Tx, entries []models.PlaylistEntry) error {
	stmt, err := tx.Prepare(`
		INSERT INTO resolved_tracks (kind, query, track_id, uri, name, artists, hits, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (kind, query, track_id) DO UPDATE
		SET hits = hits + 1, uri = excluded.uri, name = excluded.name, artists = excluded.artists
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare resolution upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		_, err := stmt.Exec(string(e.Source), shared.NormalizeKey(e.Query), e.Track.ID, e.Track.URI,
			e.Track.Name, strings.Join(e.Track.ArtistNames(), ", "), now)
		if err != nil {
			return fmt.Errorf("failed to record resolution of %q: %w", e.Query, err)
		}
	}
	return nil
}

// Get retrieves a run and its tracks in playlist order.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, sequence, playlist_id, profile_count, song_count, artist_count, skipped_count, status, error, created_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT track_id, uri, name, source, query
		FROM run_tracks
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      models.PlaylistEntry
			source string
		)
		if err := rows.Scan(&e.Track.ID, &e.Track.URI, &e.Track.Name, &source, &e.Query); err != nil {
			return nil, fmt.Errorf("failed to scan run track: %w", err)
		}
		e.Source = models.Source(source)
		run.Tracks = append(run.Tracks, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return run, nil
}

// Delete removes a run and its tracks.
func (r *RunRepository) Delete(id string) error {
	return r.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM run_tracks WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete run tracks: %w", err)
		}

		result, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}

// List returns the most recent runs, newest first, without their tracks.
// A limit below 1 returns every run.
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := r.db.Query(`
		SELECT id, sequence, playlist_id, profile_count, song_count, artist_count, skipped_count, status, error, created_at
		FROM runs
		ORDER BY sequence DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// TopTracks returns the most frequently resolved tracks across all runs.
func (r *RunRepository) TopTracks(limit int) ([]models.ResolvedTrack, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := r.db.Query(`
		SELECT kind, query, track_id, uri, name, artists, hits
		FROM resolved_tracks
		ORDER BY hits DESC, created_at ASC, query ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.ResolvedTrack
	for rows.Next() {
		var (
			rt      models.ResolvedTrack
			kind    string
			artists string
		)
		if err := rows.Scan(&kind, &rt.Query, &rt.Track.ID, &rt.Track.URI, &rt.Track.Name, &artists, &rt.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan resolved track: %w", err)
		}
		rt.Kind = models.Source(kind)
		for name := range strings.SplitSeq(artists, ", ") {
			if name != "" {
				rt.Track.Artists = append(rt.Track.Artists, models.ArtistRef{Name: name})
			}
		}
		tracks = append(tracks, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

func (r *RunRepository) inTx(fn func(*sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a runs row into a [models.Run]
func scanRun(row scanner) (*models.Run, error) {
	var (
		id           string
		sequence     int
		playlistID   string
		profileCount int
		songCount    int
		artistCount  int
		skippedCount int
		status       string
		errMsg       string
		createdAt    time.Time
	)

	err := row.Scan(&id, &sequence, &playlistID, &profileCount, &songCount, &artistCount, &skippedCount, &status, &errMsg, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.RestoreRun(id, sequence, createdAt)
	run.PlaylistID = playlistID
	run.ProfileCount = profileCount
	run.SongCount = songCount
	run.ArtistCount = artistCount
	run.SkippedCount = skippedCount
	run.Status = models.RunStatus(status)
	run.Error = errMsg
	return run, nil
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)
