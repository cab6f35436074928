// Package artifact turns a raw detail payload into the persisted unit: the
// payload itself, its numeric ID and a plaintext excerpt.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrMissingID is returned when a payload has no usable positive ID.
	ErrMissingID = errors.New("missing item id")

	// ErrNotObject is returned when a detail payload is not a JSON object.
	ErrNotObject = errors.New("detail payload is not a JSON object")
)

// Artifact is one fetched item ready to persist.
type Artifact struct {
	ID      int64
	Raw     json.RawMessage
	Excerpt string
}

// Config names the fields a Parser reads.
type Config struct {
	// IDPath locates the stable item ID.
	IDPath string

	// MarkdownPath locates the human-readable body in markdown.
	MarkdownPath string

	// HTMLPath locates an HTML body used when MarkdownPath is empty.
	HTMLPath string
}

// DefaultConfig returns the field layout of the writeup detail API.
func DefaultConfig() Config {
	return Config{
		IDPath:       "id",
		MarkdownPath: "message.rawMarkdown",
		HTMLPath:     "message.content",
	}
}

// Parser builds artifacts from detail payloads. Safe for concurrent use.
type Parser struct {
	config Config
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewParser creates a parser for cfg.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.IDPath == "" {
		return nil, fmt.Errorf("id path is required")
	}
	return &Parser{
		config: cfg,
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}, nil
}

// Parse validates raw and derives the ID and excerpt. An absent body yields
// an empty excerpt, not an error.
func (p *Parser) Parse(raw json.RawMessage) (*Artifact, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, ErrNotObject
	}

	id, err := IDAt(raw, p.config.IDPath)
	if err != nil {
		return nil, err
	}

	excerpt, err := p.excerpt(raw)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}

	return &Artifact{ID: id, Raw: raw, Excerpt: excerpt}, nil
}

func (p *Parser) excerpt(raw json.RawMessage) (string, error) {
	if p.config.MarkdownPath != "" {
		if md := StringAt(raw, p.config.MarkdownPath); md != "" {
			return md, nil
		}
	}
	if p.config.HTMLPath == "" {
		return "", nil
	}
	html := StringAt(raw, p.config.HTMLPath)
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	md, err := p.conv.ConvertString(p.policy.Sanitize(html))
	if err != nil {
		return "", fmt.Errorf("convert html excerpt: %w", err)
	}
	return strings.TrimSpace(md), nil
}
