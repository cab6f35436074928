package summary

import (
	"encoding/json"
	"testing"

	"github.com/Sternrassler/bulkfetch/internal/testutil"
	"github.com/Sternrassler/bulkfetch/pkg/artifact"
	"github.com/Sternrassler/bulkfetch/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWith(t *testing.T, payloads map[int64]json.RawMessage) *store.FileStore {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	for id, raw := range payloads {
		require.NoError(t, st.Put(&artifact.Artifact{ID: id, Raw: raw, Excerpt: "x"}))
	}
	return st
}

func TestBuild_ProjectsEveryColumn(t *testing.T) {
	st := newStoreWith(t, map[int64]json.RawMessage{
		101: testutil.DetailJSON(101,
			testutil.Link{URL: "https://github.com/team/app"},
			testutil.Link{URL: "https://youtu.be/demo"},
			testutil.Link{URL: "https://storage.googleapis.com/b/cover.png", MediaType: "IMAGE"},
		),
	})

	rows, err := NewBuilder(st, DefaultFields()).Build([]int64{101})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, int64(101), r.ID)
	assert.Equal(t, int64(1010), r.TopicID)
	assert.Equal(t, "https://example.com/writeups/101", r.URL)
	assert.Equal(t, "Writeup 101", r.Title)
	assert.Equal(t, "Summary of 101", r.Description)
	assert.Equal(t, "team-101", r.Authors)
	assert.Equal(t, "PUBLISHED", r.ContentState)
	assert.Equal(t, "2026-01-02T03:04:05Z", r.CreateTime)
	assert.Equal(t, "2026-01-03T03:04:05Z", r.PublishTime)
	assert.Equal(t, "2026-01-04T03:04:05Z", r.UpdateTime)
	assert.Equal(t, "https://github.com/team/app", r.ApplicationLinks)
	assert.Equal(t, "https://youtu.be/demo", r.VideoLinks)
	assert.JSONEq(t, `[{"url":"https://github.com/team/app"}]`, r.ApplicationLinksJSON)
	assert.JSONEq(t, `[{"url":"https://youtu.be/demo"}]`, r.VideoLinksJSON)
	assert.Equal(t, "101.md", r.MarkdownPath)
	assert.Equal(t, "101.json", r.JSONPath)
}

func TestBuild_KeepsRequestedOrder(t *testing.T) {
	st := newStoreWith(t, map[int64]json.RawMessage{
		1: testutil.DetailJSON(1),
		2: testutil.DetailJSON(2),
		3: testutil.DetailJSON(3),
	})

	rows, err := NewBuilder(st, DefaultFields()).Build([]int64{3, 1, 2})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})
}

func TestBuild_SparsePayload(t *testing.T) {
	st := newStoreWith(t, map[int64]json.RawMessage{
		5: json.RawMessage(`{"id": 5, "authors": ["ann", "bob"], "writeUpLinks": null}`),
	})

	rows, err := NewBuilder(st, DefaultFields()).Build([]int64{5})
	require.NoError(t, err)

	r := rows[0]
	assert.Equal(t, int64(0), r.TopicID)
	assert.Equal(t, "ann, bob", r.Authors)
	assert.Equal(t, "", r.Title)
	assert.Equal(t, "", r.ApplicationLinks)
	assert.Equal(t, "[]", r.ApplicationLinksJSON)
	assert.Equal(t, "[]", r.VideoLinksJSON)
}

func TestBuild_FailsOnMissingArtifact(t *testing.T) {
	st := newStoreWith(t, map[int64]json.RawMessage{1: testutil.DetailJSON(1)})

	_, err := NewBuilder(st, DefaultFields()).Build([]int64{1, 2})
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestRow_RecordMatchesHeader(t *testing.T) {
	r := Row{ID: 1, TopicID: 2, Title: "t", MarkdownPath: "1.md", JSONPath: "1.json"}
	rec := r.Record()

	require.Len(t, rec, len(Header))
	assert.Equal(t, "1", rec[0])
	assert.Equal(t, "2", rec[1])
	assert.Equal(t, "t", rec[3])
	assert.Equal(t, "1.md", rec[len(rec)-2])
	assert.Equal(t, "1.json", rec[len(rec)-1])
}
