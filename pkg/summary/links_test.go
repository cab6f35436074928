package summary

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		mediaType string
		want      Category
	}{
		{name: "youtube watch", url: "https://www.youtube.com/watch?v=abc", want: CategoryVideo},
		{name: "youtu.be short link", url: "https://youtu.be/abc", want: CategoryVideo},
		{name: "youtube uppercase", url: "HTTPS://WWW.YOUTUBE.COM/x", want: CategoryVideo},
		{name: "youtube beats image media type", url: "https://youtu.be/abc", mediaType: "IMAGE", want: CategoryVideo},
		{name: "image media type", url: "https://cdn.example.com/a.png", mediaType: "IMAGE", want: CategoryOther},
		{name: "image media type lowercase", url: "https://cdn.example.com/a.png", mediaType: "image", want: CategoryOther},
		{name: "attachment storage", url: "https://storage.googleapis.com/bucket/file.pdf", want: CategoryOther},
		{name: "storage over http is an application", url: "http://storage.googleapis.com/bucket/file.pdf", want: CategoryApplication},
		{name: "github repo", url: "https://github.com/team/app", want: CategoryApplication},
		{name: "demo with other media type", url: "https://demo.example.com", mediaType: "LINK", want: CategoryApplication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.url, tt.mediaType))
		})
	}
}

func TestClassifyLinks(t *testing.T) {
	raw := json.RawMessage(`[
		{"url": "https://github.com/team/app", "title": "code"},
		{"url": "  https://github.com/team/app  ", "title": "dup after trim"},
		{"url": "https://youtu.be/v1"},
		{"url": "https://cdn.example.com/shot.png", "mediaType": "IMAGE"},
		{"url": ""},
		{"title": "no url"},
		"not an object",
		{"url": "https://app.example.com"},
		{"url": "https://youtu.be/v1", "title": "dup video"}
	]`)

	links := ClassifyLinks(raw)

	require.Len(t, links.Application, 2)
	assert.Equal(t, "https://github.com/team/app", links.Application[0].URL)
	assert.Equal(t, "https://app.example.com", links.Application[1].URL)
	assert.JSONEq(t, `{"url": "https://github.com/team/app", "title": "code"}`, string(links.Application[0].Raw))

	require.Len(t, links.Video, 1)
	assert.Equal(t, "https://youtu.be/v1", links.Video[0].URL)

	require.Len(t, links.Other, 1)
	assert.Equal(t, "IMAGE", links.Other[0].MediaType)
}

func TestClassifyLinks_NotAnArray(t *testing.T) {
	for _, raw := range []string{`null`, `{}`, `"x"`, ``} {
		links := ClassifyLinks(json.RawMessage(raw))
		assert.Empty(t, links.Application, raw)
		assert.Empty(t, links.Video, raw)
		assert.Empty(t, links.Other, raw)
	}
}

func TestJoinURLsAndRawJSON(t *testing.T) {
	links := []Link{
		{URL: "https://a", Raw: json.RawMessage(`{"url":"https://a"}`)},
		{URL: "https://b", Raw: json.RawMessage(`{"url":"https://b","title":"B"}`)},
	}

	assert.Equal(t, "https://a;https://b", joinURLs(links))
	assert.JSONEq(t, `[{"url":"https://a"},{"url":"https://b","title":"B"}]`, rawJSON(links))
	assert.Equal(t, "", joinURLs(nil))
	assert.Equal(t, "[]", rawJSON(nil))
}
