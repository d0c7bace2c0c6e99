// Package state persists download history and paused-task snapshots so a
// task can be resumed in a later process without refetching completed
// segments.
package state

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// Record is one row of the downloads table, enough to render the history
// listing and to decide whether a task is resumable.
type Record struct {
	ID         string
	SourceURL  string
	Title      string
	OutputPath string
	Status     string // downloading, paused, waiting, done, error
	Total      int
	Completed  int
	Created    time.Time
	Updated    time.Time
}

const (
	StatusDownloading = "downloading"
	StatusPaused      = "paused"
	StatusWaiting     = "waiting"
	StatusDone        = "done"
	StatusError       = "error"
)

// Store wraps the sqlite handle. Safe for use from multiple goroutines;
// database/sql serializes access and WAL keeps readers off the writer.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database under dataDir and runs migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "hlsget.db"))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		title TEXT,
		output_path TEXT,
		status TEXT NOT NULL,
		total_segments INTEGER,
		completed_segments INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		task_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		saved_at DATETIME
	);
	`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or refreshes a download record.
func (s *Store) Upsert(r Record) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO downloads
			(id, source_url, title, output_path, status, total_segments, completed_segments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			output_path = excluded.output_path,
			completed_segments = excluded.completed_segments,
			updated_at = excluded.updated_at`,
		r.ID, r.SourceURL, r.Title, r.OutputPath, r.Status, r.Total, r.Completed, now, now)
	return err
}

// SetStatus updates just the status column of one record.
func (s *Store) SetStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE downloads SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	return err
}

// Get returns one record, or sql.ErrNoRows when the id is unknown.
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, source_url, title, output_path, status, total_segments, completed_segments, created_at, updated_at
		FROM downloads WHERE id = ?`, id)
	var r Record
	err := row.Scan(&r.ID, &r.SourceURL, &r.Title, &r.OutputPath, &r.Status,
		&r.Total, &r.Completed, &r.Created, &r.Updated)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns all records, newest first.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, source_url, title, output_path, status, total_segments, completed_segments, created_at, updated_at
		FROM downloads ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SourceURL, &r.Title, &r.OutputPath, &r.Status,
			&r.Total, &r.Completed, &r.Created, &r.Updated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a record and its snapshot.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE task_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	return err
}

// snapshot is the JSON shape parked in the snapshots table. It carries
// everything needed to rebuild a Task minus the fetched payloads: resuming
// refetches anything not yet flushed to the sink.
type snapshot struct {
	ID         string                      `json:"id"`
	SourceURL  string                      `json:"source_url"`
	Title      string                      `json:"title"`
	OutputKind types.OutputKind            `json:"output_kind"`
	OutputMode types.OutputMode            `json:"output_mode"`
	OutputPath string                      `json:"output_path"`
	RangeStart int                         `json:"range_start"`
	RangeEnd   int                         `json:"range_end"`
	Duration   float64                     `json:"duration"`
	Encryption *types.EncryptionDescriptor `json:"encryption,omitempty"`
	Segments   []segmentSnapshot           `json:"segments"`
}

type segmentSnapshot struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Done     bool    `json:"done"`
}

// SaveSnapshot serializes the task's segment progress so Resume can rebuild
// it. Inflight and failed segments are stored as not-done; they are simply
// refetched on resume. The output mode is persisted so a resumed run keeps
// the completion policy the user chose.
func (s *Store) SaveSnapshot(task *types.Task, outputPath string, mode types.OutputMode) error {
	snap := snapshot{
		ID:         task.ID,
		SourceURL:  task.SourceURL,
		Title:      task.Title,
		OutputKind: task.OutputKind,
		OutputMode: mode,
		OutputPath: outputPath,
		RangeStart: task.RangeStart,
		RangeEnd:   task.RangeEnd,
		Duration:   task.TotalDuration,
		Encryption: task.Encryption,
	}
	for _, seg := range task.Segments {
		snap.Segments = append(snap.Segments, segmentSnapshot{
			URL:      seg.URL,
			Duration: seg.Duration,
			Done:     task.Status(seg.Index) == types.SegmentSuccess,
		})
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO snapshots (task_id, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		task.ID, string(blob), time.Now().UTC())
	return err
}

// LoadSnapshot rebuilds a Task from a stored snapshot, along with the
// output path the original run was writing to and its output mode.
func (s *Store) LoadSnapshot(id string) (*types.Task, string, types.OutputMode, error) {
	var blob string
	err := s.db.QueryRow(`SELECT payload FROM snapshots WHERE task_id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, "", 0, err
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return nil, "", 0, err
	}
	task := &types.Task{
		ID:            snap.ID,
		SourceURL:     snap.SourceURL,
		Title:         snap.Title,
		OutputKind:    snap.OutputKind,
		TotalDuration: snap.Duration,
		Encryption:    snap.Encryption,
		RangeStart:    snap.RangeStart,
		RangeEnd:      snap.RangeEnd,
	}
	for i, seg := range snap.Segments {
		ref := &types.SegmentRef{Index: i, URL: seg.URL, Duration: seg.Duration}
		if seg.Done {
			ref.Status = types.SegmentSuccess
		}
		task.Segments = append(task.Segments, ref)
	}
	return task, snap.OutputPath, snap.OutputMode, nil
}

// DeleteSnapshot drops a stored snapshot, keeping the history record.
func (s *Store) DeleteSnapshot(id string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE task_id = ?`, id)
	return err
}
