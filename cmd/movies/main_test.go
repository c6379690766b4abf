package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/movie"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"serve"},
		{"healthcheck"},
		{"version"},
		{"config", "show"},
		{"openapi", "generate"},
		{"ingest"},
		{"ingest", "publish"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}

func TestQueryPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.QueryConfig
		want    movie.QueryPolicy
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  config.QueryConfig{},
			want: movie.QueryPolicy{Mode: movie.ModeLenient, DefaultLimit: 10},
		},
		{
			name: "strict with caps",
			cfg:  config.QueryConfig{Mode: "strict", DefaultLimit: 25, MaxLimit: 100},
			want: movie.QueryPolicy{Mode: movie.ModeStrict, DefaultLimit: 25, MaxLimit: 100},
		},
		{
			name:    "unknown mode",
			cfg:     config.QueryConfig{Mode: "chaotic"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := queryPolicy(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("policy = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildDocument(t *testing.T) {
	doc, err := buildDocument(config.DefaultConfig())
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("document does not validate: %v", err)
	}
	for _, path := range []string{"/", "/movies", "/movies/search", "/movies/{id}"} {
		if doc.Paths.Value(path) == nil {
			t.Errorf("path %s missing", path)
		}
	}
	if doc.Info.Version != "0.0.0-dev" {
		t.Errorf("expected development api version, got %q", doc.Info.Version)
	}
}

func TestProbe(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	if err := probe(context.Background(), srv.URL); err != nil {
		t.Fatalf("ready service: %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := probe(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want not ready", err)
	}
}

func TestCheckReadyRequiresManagement(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Management.Enabled = false
	if err := checkReady(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error when management is disabled")
	}
}

func TestReadPayload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "movie.json")
	if err := os.WriteFile(file, []byte(`{"title":"Heat","releaseYear":1995}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		stdin   string
		file    string
		wantErr bool
	}{
		{name: "stdin", stdin: `{"title":"Alien"}`, file: "-"},
		{name: "file", file: file},
		{name: "not an object", stdin: `null`, file: "-", wantErr: true},
		{name: "invalid json", stdin: `{`, file: "-", wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope.json"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := readPayload(strings.NewReader(tt.stdin), tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && payload["title"] == nil {
				t.Errorf("payload = %v", payload)
			}
		})
	}
}
