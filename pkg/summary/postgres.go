package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the table PostgresWriter upserts into.
const DefaultTable = "bulkfetch_summary"

// PostgresWriter upserts rows keyed by id.
type PostgresWriter struct {
	pool      *pgxpool.Pool
	table     pgx.Identifier
	batchSize int
}

// NewPostgresWriter creates a writer for table, which may be schema
// qualified ("archive.summary").
func NewPostgresWriter(pool *pgxpool.Pool, table string) (*PostgresWriter, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &PostgresWriter{
		pool:      pool,
		table:     pgx.Identifier(parts),
		batchSize: 200,
	}, nil
}

// EnsureSchema creates the table when it does not exist.
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+w.table.Sanitize()+` (
		id                     BIGINT PRIMARY KEY,
		topic_id               BIGINT,
		url                    TEXT NOT NULL DEFAULT '',
		title                  TEXT NOT NULL DEFAULT '',
		description            TEXT NOT NULL DEFAULT '',
		authors                TEXT NOT NULL DEFAULT '',
		content_state          TEXT NOT NULL DEFAULT '',
		create_time            TIMESTAMPTZ,
		publish_time           TIMESTAMPTZ,
		update_time            TIMESTAMPTZ,
		application_links      TEXT NOT NULL DEFAULT '',
		video_links            TEXT NOT NULL DEFAULT '',
		application_links_json JSONB NOT NULL DEFAULT '[]',
		video_links_json       JSONB NOT NULL DEFAULT '[]',
		markdown_path          TEXT NOT NULL,
		json_path              TEXT NOT NULL,
		synced_at              TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create summary table: %w", err)
	}
	return nil
}

// Write upserts rows in batches. Rows already present are overwritten.
func (w *PostgresWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ` + w.table.Sanitize() + `
		(id, topic_id, url, title, description, authors, content_state,
		 create_time, publish_time, update_time,
		 application_links, video_links, application_links_json, video_links_json,
		 markdown_path, json_path, synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::jsonb,$14::jsonb,$15,$16,now())
		ON CONFLICT (id) DO UPDATE SET
		 topic_id = EXCLUDED.topic_id,
		 url = EXCLUDED.url,
		 title = EXCLUDED.title,
		 description = EXCLUDED.description,
		 authors = EXCLUDED.authors,
		 content_state = EXCLUDED.content_state,
		 create_time = EXCLUDED.create_time,
		 publish_time = EXCLUDED.publish_time,
		 update_time = EXCLUDED.update_time,
		 application_links = EXCLUDED.application_links,
		 video_links = EXCLUDED.video_links,
		 application_links_json = EXCLUDED.application_links_json,
		 video_links_json = EXCLUDED.video_links_json,
		 markdown_path = EXCLUDED.markdown_path,
		 json_path = EXCLUDED.json_path,
		 synced_at = now()`

	total := 0
	for i := 0; i < len(rows); i += w.batchSize {
		j := i + w.batchSize
		if j > len(rows) {
			j = len(rows)
		}

		b := &pgx.Batch{}
		for _, r := range rows[i:j] {
			b.Queue(query,
				r.ID, nullableID(r.TopicID), r.URL, r.Title, r.Description, r.Authors, r.ContentState,
				parseTimestamp(r.CreateTime), parseTimestamp(r.PublishTime), parseTimestamp(r.UpdateTime),
				r.ApplicationLinks, r.VideoLinks, r.ApplicationLinksJSON, r.VideoLinksJSON,
				r.MarkdownPath, r.JSONPath,
			)
		}

		br := w.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert summary row %d: %w", rows[k].ID, err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close summary batch: %w", err)
		}
	}

	rowsWritten.WithLabelValues("postgres").Add(float64(total))
	logger := logging.NewLogger(logging.ComponentSummary)
	logger.Info().
		Str("table", w.table.Sanitize()).
		Int("rows", total).
		Msg("Summary rows upserted")
	return nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
