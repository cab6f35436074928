// Package summary projects persisted artifacts into a flat table with one
// row per item and writes that table to CSV and optionally Postgres.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/bulkfetch/pkg/artifact"
	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrMissingArtifact is returned by Build when a target has no artifact.
var ErrMissingArtifact = errors.New("artifact missing for summary")

// Source reads persisted artifacts. *store.FileStore satisfies it.
type Source interface {
	Get(id int64) (json.RawMessage, error)
	RelPaths(id int64) (jsonPath, mdPath string)
}

// Sink receives the finished table.
type Sink interface {
	Write(ctx context.Context, rows []Row) error
}

// Fields names where each column is read from in a detail payload.
type Fields struct {
	ID           string
	TopicID      string
	URL          string
	Title        string
	Description  string
	Authors      string
	ContentState string
	CreateTime   string
	PublishTime  string
	UpdateTime   string
	Links        string
}

// DefaultFields returns the field layout of the writeup detail API.
func DefaultFields() Fields {
	return Fields{
		ID:           "id",
		TopicID:      "topicId",
		URL:          "url",
		Title:        "title",
		Description:  "subtitle",
		Authors:      "authors",
		ContentState: "contentState",
		CreateTime:   "createTime",
		PublishTime:  "publishTime",
		UpdateTime:   "updateTime",
		Links:        "writeUpLinks",
	}
}

// Builder turns stored artifacts into rows.
type Builder struct {
	source Source
	fields Fields
	logger zerolog.Logger
}

// NewBuilder creates a builder reading from source.
func NewBuilder(source Source, fields Fields) *Builder {
	return &Builder{
		source: source,
		fields: fields,
		logger: logging.NewLogger(logging.ComponentSummary),
	}
}

// Build returns one row per id, in the order given. It fails on the first
// id without an artifact.
func (b *Builder) Build(ids []int64) ([]Row, error) {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		raw, err := b.source.Get(id)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMissingArtifact, id, err)
		}
		rows = append(rows, b.row(id, raw))
	}
	b.logger.Info().Int("rows", len(rows)).Msg("Summary built")
	return rows, nil
}

func (b *Builder) row(id int64, raw json.RawMessage) Row {
	f := b.fields

	rowID := id
	if got, err := artifact.IDAt(raw, f.ID); err == nil {
		rowID = got
	}
	var topicID int64
	if got, err := artifact.IDAt(raw, f.TopicID); err == nil {
		topicID = got
	}

	var links Links
	if v, ok := artifact.Lookup(raw, f.Links); ok {
		links = ClassifyLinks(v)
	}
	jsonPath, mdPath := b.source.RelPaths(id)

	return Row{
		ID:                   rowID,
		TopicID:              topicID,
		URL:                  text(raw, f.URL),
		Title:                text(raw, f.Title),
		Description:          text(raw, f.Description),
		Authors:              text(raw, f.Authors),
		ContentState:         text(raw, f.ContentState),
		CreateTime:           text(raw, f.CreateTime),
		PublishTime:          text(raw, f.PublishTime),
		UpdateTime:           text(raw, f.UpdateTime),
		ApplicationLinks:     joinURLs(links.Application),
		VideoLinks:           joinURLs(links.Video),
		ApplicationLinksJSON: rawJSON(links.Application),
		VideoLinksJSON:       rawJSON(links.Video),
		MarkdownPath:         mdPath,
		JSONPath:             jsonPath,
	}
}

// text reads a scalar at path; a list of scalars is joined with ", ".
func text(raw json.RawMessage, path string) string {
	if path == "" {
		return ""
	}
	if s := artifact.StringAt(raw, path); s != "" {
		return s
	}
	v, ok := artifact.Lookup(raw, path)
	if !ok {
		return ""
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(v, &parts); err != nil {
		return ""
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := artifact.StringAt(p, ""); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}
