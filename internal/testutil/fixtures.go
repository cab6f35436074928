package testutil

import (
	"encoding/json"
	"fmt"
)

// Link is one entry of a fixture detail's link collection.
type Link struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ListItem returns a listing item nesting id the way the writeup listing does.
func ListItem(id int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"writeUp":{"id":%d,"title":"Writeup %d"}}`, id, id))
}

// ListItems returns ListItem for every id.
func ListItems(ids ...int64) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = ListItem(id)
	}
	return out
}

// DetailJSON returns a detail payload for id with a deterministic set of
// fields and the given links.
func DetailJSON(id int64, links ...Link) json.RawMessage {
	if links == nil {
		links = []Link{}
	}
	detail := map[string]any{
		"id":           id,
		"topicId":      id * 10,
		"url":          fmt.Sprintf("https://example.com/writeups/%d", id),
		"title":        fmt.Sprintf("Writeup %d", id),
		"subtitle":     fmt.Sprintf("Summary of %d", id),
		"authors":      fmt.Sprintf("team-%d", id),
		"contentState": "PUBLISHED",
		"createTime":   "2026-01-02T03:04:05Z",
		"publishTime":  "2026-01-03T03:04:05Z",
		"updateTime":   "2026-01-04T03:04:05Z",
		"message": map[string]any{
			"rawMarkdown": fmt.Sprintf("# Writeup %d\n\nBody.", id),
		},
		"writeUpLinks": links,
	}
	data, err := json.Marshal(detail)
	if err != nil {
		panic(err)
	}
	return data
}
