package summary

import "strconv"

// Header is the column order of every summary table.
var Header = []string{
	"id",
	"topic_id",
	"url",
	"title",
	"description",
	"authors",
	"content_state",
	"create_time",
	"publish_time",
	"update_time",
	"application_links",
	"video_links",
	"application_links_json",
	"video_links_json",
	"markdown_path",
	"json_path",
}

// Row is the flat projection of one artifact.
type Row struct {
	ID           int64
	TopicID      int64
	URL          string
	Title        string
	Description  string
	Authors      string
	ContentState string
	CreateTime   string
	PublishTime  string
	UpdateTime   string

	// ApplicationLinks and VideoLinks are ";"-joined URLs.
	ApplicationLinks string
	VideoLinks       string

	// ApplicationLinksJSON and VideoLinksJSON hold the original link
	// entries as a JSON array.
	ApplicationLinksJSON string
	VideoLinksJSON       string

	// MarkdownPath and JSONPath are relative to the store root.
	MarkdownPath string
	JSONPath     string
}

// Record returns the row's values in Header order.
func (r Row) Record() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		strconv.FormatInt(r.TopicID, 10),
		r.URL,
		r.Title,
		r.Description,
		r.Authors,
		r.ContentState,
		r.CreateTime,
		r.PublishTime,
		r.UpdateTime,
		r.ApplicationLinks,
		r.VideoLinks,
		r.ApplicationLinksJSON,
		r.VideoLinksJSON,
		r.MarkdownPath,
		r.JSONPath,
	}
}
