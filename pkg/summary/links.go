package summary

import (
	"encoding/json"
	"strings"
)

// Category is the class a link is sorted into.
type Category string

const (
	// CategoryApplication is a link to a running app, repository or demo.
	CategoryApplication Category = "application"

	// CategoryVideo is a YouTube link.
	CategoryVideo Category = "video"

	// CategoryOther covers images and hosted attachments.
	CategoryOther Category = "other"
)

const attachmentHost = "https://storage.googleapis.com/"

// Link is one entry of an artifact's link collection. Raw keeps the entry
// exactly as the API returned it.
type Link struct {
	URL       string
	MediaType string
	Raw       json.RawMessage
}

// Links groups an artifact's links by category, each in first-seen order.
type Links struct {
	Application []Link
	Video       []Link
	Other       []Link
}

// Classify sorts one URL. Rules apply in order: YouTube hosts are video,
// IMAGE media and attachment storage are other, everything else is an
// application.
func Classify(url, mediaType string) Category {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be"):
		return CategoryVideo
	case strings.EqualFold(strings.TrimSpace(mediaType), "IMAGE"):
		return CategoryOther
	case strings.HasPrefix(u, attachmentHost):
		return CategoryOther
	default:
		return CategoryApplication
	}
}

// ClassifyLinks decodes a JSON array of link objects and groups them.
// Entries without a URL are dropped and repeated URLs (after trimming) are
// kept once. Anything that is not an array yields no links.
func ClassifyLinks(raw json.RawMessage) Links {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Links{}
	}

	var out Links
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		var l struct {
			URL       string `json:"url"`
			MediaType string `json:"mediaType"`
		}
		if err := json.Unmarshal(entry, &l); err != nil {
			continue
		}
		url := strings.TrimSpace(l.URL)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		link := Link{URL: url, MediaType: l.MediaType, Raw: entry}
		switch Classify(url, l.MediaType) {
		case CategoryVideo:
			out.Video = append(out.Video, link)
		case CategoryOther:
			out.Other = append(out.Other, link)
		default:
			out.Application = append(out.Application, link)
		}
	}
	return out
}

// joinURLs renders links as a ";"-separated URL list.
func joinURLs(links []Link) string {
	urls := make([]string, len(links))
	for i, l := range links {
		urls[i] = l.URL
	}
	return strings.Join(urls, ";")
}

// rawJSON renders links as a compact JSON array of the original entries.
func rawJSON(links []Link) string {
	entries := make([]json.RawMessage, len(links))
	for i, l := range links {
		entries[i] = l.Raw
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}
