package store

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection holding the edit history.
type Store struct {
	conn *pgx.Conn
}

// Video is the metadata recorded for each source file.
type Video struct {
	ID         string
	Path       string
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Job is one applied blur.
type Job struct {
	ID         int64
	VideoID    string
	VideoPath  string
	OutputPath string
	StartFrame int
	EndFrame   int
	Rect       image.Rectangle
	KernelSize int
	Filter     string
	CreatedAt  time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			fps DOUBLE PRECISION NOT NULL,
			frame_count INT NOT NULL,
			registered_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS blur_jobs (
			id BIGSERIAL PRIMARY KEY,
			video_id TEXT REFERENCES videos(id),
			output_path TEXT NOT NULL,
			start_frame INT NOT NULL,
			end_frame INT NOT NULL,
			rect INT[] NOT NULL,
			kernel_size INT NOT NULL,
			filter TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS blur_jobs_video_id_idx ON blur_jobs (video_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureVideo registers the video in the database. If it exists, it refreshes the metadata.
func (s *Store) EnsureVideo(ctx context.Context, v Video) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO videos (id, path, width, height, fps, frame_count, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			fps = EXCLUDED.fps,
			frame_count = EXCLUDED.frame_count,
			registered_at = NOW()
	`, v.ID, v.Path, v.Width, v.Height, v.FPS, v.FrameCount)
	return err
}

// InsertJob records an applied blur and returns its ID.
func (s *Store) InsertJob(ctx context.Context, j Job) (int64, error) {
	rect := []int32{int32(j.Rect.Min.X), int32(j.Rect.Min.Y), int32(j.Rect.Max.X), int32(j.Rect.Max.Y)}
	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO blur_jobs (video_id, output_path, start_frame, end_frame, rect, kernel_size, filter)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, j.VideoID, j.OutputPath, j.StartFrame, j.EndFrame, rect, j.KernelSize, j.Filter).Scan(&id)
	return id, err
}

// ListJobs returns the most recent jobs first. An empty videoID lists all videos.
func (s *Store) ListJobs(ctx context.Context, videoID string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(ctx, `
		SELECT j.id, j.video_id, v.path, j.output_path, j.start_frame, j.end_frame,
		       j.rect, j.kernel_size, j.filter, j.created_at
		FROM blur_jobs j
		JOIN videos v ON v.id = j.video_id
		WHERE $1 = '' OR j.video_id = $1
		ORDER BY j.created_at DESC, j.id DESC
		LIMIT $2
	`, videoID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var rect []int32
		if err := rows.Scan(&j.ID, &j.VideoID, &j.VideoPath, &j.OutputPath, &j.StartFrame, &j.EndFrame,
			&rect, &j.KernelSize, &j.Filter, &j.CreatedAt); err != nil {
			return nil, err
		}
		if len(rect) == 4 {
			j.Rect = image.Rect(int(rect[0]), int(rect[1]), int(rect[2]), int(rect[3]))
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS blur_jobs CASCADE;
		DROP TABLE IF EXISTS videos CASCADE;
	`)
	return err
}
