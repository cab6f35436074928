//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/bulkfetch/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) (string, *redis.Client) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	addr := host + ":" + port.Port()
	rc := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		rc.Close()
		container.Terminate(context.Background())
	})
	return addr, rc
}

// A listing walk interrupted mid-way leaves its finished pages cached; the
// rerun replays them, requests only the rest and purges them once the walk
// is done.
func TestRun_PageCacheResumesInterruptedListing(t *testing.T) {
	addr, rc := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.ServeDetails("/detail", "writeUpId")
	mock.SetDetail(1, testutil.DetailJSON(1))
	mock.SetDetail(2, testutil.DetailJSON(2))
	mock.SetDetail(3, testutil.DetailJSON(3))
	mock.SetHandler("/list", func(w http.ResponseWriter, r *http.Request) {
		if bytes.Contains(testutil.RequestBody(r), []byte(`"page-1"`)) {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalCount":        3,
			"hackathonWriteUps": testutil.ListItems(1, 2),
			"nextPageToken":     "page-1",
		})
	})

	out := filepath.Join(t.TempDir(), "out")
	args := runArgs(mock, out, "--redis-addr", addr)

	code := run(ctx, args, &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, exitFailure, code)

	keys, err := rc.Keys(ctx, "bulkfetch:page:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1, "finished page stays cached after an interrupted walk")

	mock.ServeListing("/list", "hackathonWriteUps", 3, [][]json.RawMessage{
		testutil.ListItems(1, 2),
		testutil.ListItems(3),
	})
	mock.Reset()

	code = run(ctx, args, &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, exitComplete, code)
	assert.Equal(t, 1, mock.RequestCount("/list"), "first page replayed from cache")

	keys, err = rc.Keys(ctx, "bulkfetch:page:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys, "pages purged once the walk finished")
}

// A finished walk is never replayed, so a mismatch clears as soon as the
// server lists every item.
func TestRun_PageCacheDoesNotPinMismatch(t *testing.T) {
	addr, rc := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.ServeDetails("/detail", "writeUpId")
	mock.SetDetail(1, testutil.DetailJSON(1))
	mock.SetDetail(2, testutil.DetailJSON(2))
	mock.ServeListing("/list", "hackathonWriteUps", 2, [][]json.RawMessage{testutil.ListItems(1)})

	args := runArgs(mock, filepath.Join(t.TempDir(), "out"), "--redis-addr", addr)
	require.Equal(t, exitMismatch, run(ctx, args, &bytes.Buffer{}, &bytes.Buffer{}))

	keys, err := rc.Keys(ctx, "bulkfetch:page:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)

	mock.ServeListing("/list", "hackathonWriteUps", 2, [][]json.RawMessage{testutil.ListItems(1, 2)})
	assert.Equal(t, exitComplete, run(ctx, args, &bytes.Buffer{}, &bytes.Buffer{}))
}

func TestRun_RedisUnavailable(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var stderr bytes.Buffer
	code := run(context.Background(), runArgs(mock, t.TempDir(), "--redis-addr", "127.0.0.1:1"), &bytes.Buffer{}, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "connect to redis")
}
