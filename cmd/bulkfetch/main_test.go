package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/bulkfetch/internal/testutil"
	"github.com/Sternrassler/bulkfetch/pkg/harvest"
	"github.com/Sternrassler/bulkfetch/pkg/ratelimit"
	"github.com/Sternrassler/bulkfetch/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig([]string{"--root-id", "42"}, envMap(nil), &bytes.Buffer{})
	require.NoError(t, err)

	want := DefaultConfig()
	want.RootID = "42"
	assert.Equal(t, want, cfg)

	assert.Equal(t, "/api/i/competitions.HackathonService/ListHackathonWriteUps", cfg.ListEndpoint)
	assert.Equal(t, "/api/i/discussions.WriteUpsService/GetWriteUpById", cfg.DetailEndpoint)
	assert.Zero(t, cfg.MaxPages, "listing walk unbounded by default")
}

func TestLoadConfig_PositionalRootID(t *testing.T) {
	cfg, err := loadConfig([]string{"--workers", "2", "777"}, envMap(nil), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "777", cfg.RootID)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulkfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root_id: "100"
workers: 8
page_size: 20
max_pages: 40
timeout: 15s
min_interval: 500ms
store_dir: from-yaml
session:
  cookie: yaml-cookie
`), 0o644))

	env := envMap(map[string]string{
		"BULKFETCH_WORKERS":   "6",
		"BULKFETCH_STORE_DIR": "from-env",
		"BULKFETCH_COOKIE":    "env-cookie",
	})

	cfg, err := loadConfig([]string{"--config", path, "--workers", "3"}, env, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "100", cfg.RootID, "yaml over default")
	assert.Equal(t, 20, cfg.PageSize, "yaml over default")
	assert.Equal(t, 40, cfg.MaxPages, "yaml over default")
	assert.Equal(t, 15*time.Second, cfg.Timeout, "yaml duration")
	assert.Equal(t, 500*time.Millisecond, cfg.MinInterval)
	assert.Equal(t, "from-env", cfg.StoreDir, "env over yaml")
	assert.Equal(t, "env-cookie", cfg.Session.Cookie, "env over yaml")
	assert.Equal(t, 3, cfg.Workers, "flag over env")
	assert.Equal(t, 8, cfg.MaxAttempts, "untouched default")
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{name: "missing root id", args: nil, want: "root_id is required"},
		{name: "bad flag", args: []string{"--root-id", "1", "--workers", "x"}, want: "invalid value"},
		{name: "zero workers", args: []string{"--root-id", "1", "--workers", "0"}, want: "workers must be >= 1"},
		{name: "negative max pages", args: []string{"--root-id", "1", "--max-pages", "-1"}, want: "max_pages must be >= 0"},
		{name: "bad env int", args: []string{"--root-id", "1"}, env: map[string]string{"BULKFETCH_PAGE_SIZE": "big"}, want: "BULKFETCH_PAGE_SIZE"},
		{name: "bad env duration", args: []string{"--root-id", "1"}, env: map[string]string{"BULKFETCH_TIMEOUT": "soon"}, want: "BULKFETCH_TIMEOUT"},
		{name: "bad log level", args: []string{"--root-id", "1", "--log-level", "loud"}, want: "unknown log level"},
		{name: "missing config file", args: []string{"--config", "/nonexistent/bulkfetch.yaml"}, want: "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.args, envMap(tt.env), &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := loadConfig([]string{"-h"}, envMap(nil), &stderr)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "Usage: bulkfetch")
	assert.Contains(t, stderr.String(), "-retry-passes")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "complete", err: nil, want: exitComplete},
		{name: "mismatch", err: fmt.Errorf("%w: declared 2, unique 1", harvest.ErrCompletenessMismatch), want: exitMismatch},
		{name: "incomplete", err: fmt.Errorf("%w: 1 of 3", harvest.ErrIncomplete), want: exitMissing},
		{name: "other", err: errors.New("boom"), want: exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func runArgs(mock *testutil.MockAPI, out string, extra ...string) []string {
	args := []string{
		"--base-url", mock.URL(),
		"--list-endpoint", "/list",
		"--detail-endpoint", "/detail",
		"--root-id", "555",
		"--out", out,
		"--min-interval", "1ms",
		"--max-attempts", "2",
		"--retry-passes", "1",
		"--log-level", "error",
	}
	return append(args, extra...)
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testutil.MockAPI)
		want  int
		check func(t *testing.T, out string)
	}{
		{
			name: "complete",
			setup: func(m *testutil.MockAPI) {
				m.ServeListing("/list", "hackathonWriteUps", 2, [][]json.RawMessage{testutil.ListItems(1), testutil.ListItems(2)})
				m.SetDetail(1, testutil.DetailJSON(1))
				m.SetDetail(2, testutil.DetailJSON(2))
			},
			want: exitComplete,
			check: func(t *testing.T, out string) {
				assert.FileExists(t, filepath.Join(out, store.SummaryFile))
				assert.FileExists(t, filepath.Join(out, store.ManifestFile))
				assert.NoFileExists(t, filepath.Join(out, store.MissingFile))
			},
		},
		{
			name: "completeness mismatch",
			setup: func(m *testutil.MockAPI) {
				m.ServeListing("/list", "hackathonWriteUps", 3, [][]json.RawMessage{testutil.ListItems(1, 1)})
			},
			want: exitMismatch,
			check: func(t *testing.T, out string) {
				entries, err := os.ReadDir(out)
				require.NoError(t, err)
				assert.Empty(t, entries)
			},
		},
		{
			name: "items missing",
			setup: func(m *testutil.MockAPI) {
				m.ServeListing("/list", "hackathonWriteUps", 1, [][]json.RawMessage{testutil.ListItems(9)})
				m.SetDetail(9, testutil.DetailJSON(10))
			},
			want: exitMissing,
			check: func(t *testing.T, out string) {
				data, err := os.ReadFile(filepath.Join(out, store.MissingFile))
				require.NoError(t, err)
				assert.Equal(t, "9\n", string(data))
			},
		},
		{
			name:  "listing unavailable",
			setup: func(m *testutil.MockAPI) {},
			want:  exitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.ServeDetails("/detail", "writeUpId")
			tt.setup(mock)

			out := filepath.Join(t.TempDir(), "out")
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), runArgs(mock, out), &stdout, &stderr)

			assert.Equal(t, tt.want, code, "stderr: %s", stderr.String())
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestRun_PrintsReport(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.ServeDetails("/detail", "writeUpId")
	mock.ServeListing("/list", "hackathonWriteUps", 1, [][]json.RawMessage{testutil.ListItems(5)})
	mock.SetDetail(5, testutil.DetailJSON(5))

	var stdout bytes.Buffer
	code := run(context.Background(), runArgs(mock, filepath.Join(t.TempDir(), "out")), &stdout, &bytes.Buffer{})
	require.Equal(t, exitComplete, code)

	out := stdout.String()
	assert.Contains(t, out, "root:      555")
	assert.Contains(t, out, "fetched:   1")
	assert.Contains(t, out, "missing:   0")
}

func TestRun_InvalidConfig(t *testing.T) {
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"--workers", "0", "--root-id", "1"}, &bytes.Buffer{}, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.True(t, strings.Contains(stderr.String(), "workers must be >= 1"))
}

func TestRun_Help(t *testing.T) {
	code := run(context.Background(), []string{"--help"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitComplete, code)
}

func TestRun_MetricsServerStatus(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.ServeDetails("/detail", "writeUpId")
	mock.ServeListing("/list", "hackathonWriteUps", 0, [][]json.RawMessage{{}})

	code := run(context.Background(), runArgs(mock, filepath.Join(t.TempDir(), "out"), "--metrics-addr", "127.0.0.1:0"), &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitComplete, code)
}

func TestLimiterStatus(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := newLimiterStatus(ratelimit.State{
		Name:            "detail",
		BaseInterval:    100 * time.Millisecond,
		CurrentInterval: 400 * time.Millisecond,
		NextAllowedAt:   now.Add(250 * time.Millisecond),
	}, now)

	assert.True(t, st.Throttled)
	assert.Equal(t, 250*time.Millisecond, st.Wait)

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "detail", body["name"])
	assert.Equal(t, true, body["throttled"])
	assert.EqualValues(t, 250*time.Millisecond, body["wait"])

	idle := newLimiterStatus(ratelimit.State{
		BaseInterval:    100 * time.Millisecond,
		CurrentInterval: 100 * time.Millisecond,
		NextAllowedAt:   now.Add(-time.Second),
	}, now)
	assert.False(t, idle.Throttled)
	assert.Zero(t, idle.Wait)
}

func TestRun_MaxPagesStopsRunawayListing(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.ServeDetails("/detail", "writeUpId")
	mock.ServeListing("/list", "hackathonWriteUps", 3, [][]json.RawMessage{
		testutil.ListItems(1), testutil.ListItems(2), testutil.ListItems(3),
	})

	var stderr bytes.Buffer
	code := run(context.Background(), runArgs(mock, filepath.Join(t.TempDir(), "out"), "--max-pages", "2"), &bytes.Buffer{}, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Equal(t, 2, mock.RequestCount("/list"))
	assert.Contains(t, stderr.String(), "listing exceeded page limit")
}
