package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/cache"
	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/rs/zerolog"
)

var (
	// ErrItemsNotSequence is returned when a page's item field is not an array.
	ErrItemsNotSequence = errors.New("listing items are not a sequence")

	// ErrCursorLoop is returned when the endpoint hands out a token twice.
	ErrCursorLoop = errors.New("listing cursor repeated")

	// ErrTooManyPages is returned when the walk exceeds Config.MaxPages.
	ErrTooManyPages = errors.New("listing exceeded page limit")
)

// Caller issues one listing request. *client.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	return f(ctx, endpoint, payload)
}

// PageCache replays listing pages. *cache.Manager satisfies it.
type PageCache interface {
	Get(ctx context.Context, key cache.PageKey) (*cache.PageEntry, error)
	Put(ctx context.Context, key cache.PageKey, data json.RawMessage) error
	Delete(ctx context.Context, key cache.PageKey) error
}

// Config names the listing endpoint and its request/response fields.
type Config struct {
	// Endpoint is the listing path.
	Endpoint string

	// PageSize is sent with every request.
	PageSize int

	// RootField is the request field carrying the root ID.
	RootField string

	// ItemsField is the response array holding the page's items.
	ItemsField string

	// TotalField is the response field with the declared total.
	TotalField string

	// TokenField is the response field with the continuation token.
	TokenField string

	// MaxPages bounds the walk. 0 means unbounded.
	MaxPages int

	// Cache replays pages when set. Optional.
	Cache PageCache
}

// DefaultConfig returns the field layout of the writeup listing API.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		PageSize:   50,
		RootField:  "competitionId",
		ItemsField: "hackathonWriteUps",
		TotalField: "totalCount",
		TokenField: "nextPageToken",
	}
}

// Listing is the result of a complete walk.
type Listing struct {
	// DeclaredTotal is the total reported by the first page.
	DeclaredTotal int

	// Items holds every page's items in arrival order, duplicates included.
	Items []json.RawMessage

	// Pages is the number of pages consumed.
	Pages int
}

// Lister walks one listing endpoint.
type Lister struct {
	caller Caller
	config Config
	logger zerolog.Logger
}

// NewLister creates a lister.
func NewLister(caller Caller, cfg Config) (*Lister, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("listing endpoint is required")
	}
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("page_size must be >= 1 (got %d)", cfg.PageSize)
	}
	if cfg.RootField == "" || cfg.ItemsField == "" || cfg.TotalField == "" || cfg.TokenField == "" {
		return nil, fmt.Errorf("listing field names are required")
	}

	return &Lister{
		caller: caller,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentPagination).With().Str("endpoint", cfg.Endpoint).Logger(),
	}, nil
}

// page is the decoded envelope of one listing response.
type page struct {
	total int
	items []json.RawMessage
	next  string
}

// ListAll walks every page of rootID until a page comes back without a
// continuation token.
func (l *Lister) ListAll(ctx context.Context, rootID string) (*Listing, error) {
	start := time.Now()
	listing := &Listing{}
	seen := make(map[string]struct{})
	token := ""

	for {
		if l.config.MaxPages > 0 && listing.Pages >= l.config.MaxPages {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyPages, l.config.MaxPages)
		}

		p, err := l.fetchPage(ctx, rootID, token)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", listing.Pages+1, err)
		}

		if listing.Pages == 0 {
			listing.DeclaredTotal = p.total
		}
		listing.Pages++
		listing.Items = append(listing.Items, p.items...)
		itemsListed.Add(float64(len(p.items)))

		l.logger.Debug().
			Int("page", listing.Pages).
			Int("items", len(p.items)).
			Int("total", listing.DeclaredTotal).
			Msg("Listing page received")

		if p.next == "" {
			break
		}
		if _, dup := seen[p.next]; dup {
			return nil, fmt.Errorf("%w: %q", ErrCursorLoop, p.next)
		}
		seen[p.next] = struct{}{}
		token = p.next
	}

	l.logger.Info().
		Str("root_id", rootID).
		Int("pages", listing.Pages).
		Int("items", len(listing.Items)).
		Int("declared_total", listing.DeclaredTotal).
		Dur("duration", time.Since(start)).
		Msg("Listing complete")

	return listing, nil
}

func (l *Lister) fetchPage(ctx context.Context, rootID, token string) (*page, error) {
	key := cache.PageKey{
		Endpoint:  l.config.Endpoint,
		RootID:    rootID,
		PageSize:  l.config.PageSize,
		PageToken: token,
	}

	if l.config.Cache != nil {
		entry, err := l.config.Cache.Get(ctx, key)
		switch {
		case err == nil:
			if p, perr := l.decode(entry.Data); perr == nil {
				pagesTotal.WithLabelValues("cache").Inc()
				return p, nil
			}
			l.logger.Warn().Str("page_token", token).Msg("Discarding undecodable cached page")
			if derr := l.config.Cache.Delete(ctx, key); derr != nil {
				l.logger.Warn().Err(derr).Msg("Failed to drop cached page")
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			l.logger.Warn().Err(err).Msg("Page cache unavailable, fetching from network")
		}
	}

	data, err := l.caller.Call(ctx, l.config.Endpoint, l.payload(rootID, token))
	if err != nil {
		return nil, err
	}
	p, err := l.decode(data)
	if err != nil {
		return nil, err
	}
	pagesTotal.WithLabelValues("network").Inc()

	if l.config.Cache != nil {
		if err := l.config.Cache.Put(ctx, key, data); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to cache listing page")
		}
	}
	return p, nil
}

// payload sends numeric root IDs as JSON numbers.
func (l *Lister) payload(rootID, token string) map[string]any {
	var root any = rootID
	if n, err := strconv.ParseInt(rootID, 10, 64); err == nil {
		root = n
	}
	payload := map[string]any{
		l.config.RootField: root,
		"pageSize":         l.config.PageSize,
	}
	if token != "" {
		payload["pageToken"] = token
	}
	return payload
}

func (l *Lister) decode(data json.RawMessage) (*page, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil || envelope == nil {
		return nil, fmt.Errorf("listing response is not a JSON object")
	}

	p := &page{}

	if raw, ok := envelope[l.config.TotalField]; ok && !isNull(raw) {
		total, err := parseCount(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.config.TotalField, err)
		}
		p.total = total
	}

	if raw, ok := envelope[l.config.ItemsField]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &p.items); err != nil {
			return nil, fmt.Errorf("%w: field %q", ErrItemsNotSequence, l.config.ItemsField)
		}
	}

	if raw, ok := envelope[l.config.TokenField]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &p.next); err != nil {
			return nil, fmt.Errorf("%s is not a string", l.config.TokenField)
		}
	}

	return p, nil
}

// parseCount accepts a number or a numeric string.
func parseCount(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("not a number: %s", raw)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := n.Int64()
	if err != nil || v < 0 {
		return 0, fmt.Errorf("not a count: %s", raw)
	}
	return int(v), nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
