package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	tu "github.com/desertthunder/setlist/internal/testing"
	"golang.org/x/oauth2"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestRunner wires srv and an in-memory database into a runner writing to the returned buffer.
func newTestRunner(t *testing.T, srv *tu.MockService) (*Runner, *bytes.Buffer) {
	t.Helper()

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Spotify: srv,
		DB:      setupTestDB(t),
		Logger:  log.New(io.Discard),
		Output:  output,
	})
	return runner, output
}

// run executes args against the root command with a config path that does not exist, so defaults apply.
func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.toml")
	argv := append([]string{"setlist", "--config", missing}, args...)
	return newApp(r).Run(context.Background(), argv)
}

func clubPlaylist() *tu.MockService {
	return tu.NewMockService("p1", tu.ClubRecord("a", 100), tu.ClubRecord("b", 140), tu.ClubRecord("c", 120))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			spotify := &tu.MockService{}
			db := setupTestDB(t)

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Spotify: spotify,
				DB:      db,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.spotify != spotify {
				t.Error("expected spotify to be set")
			}
			if runner.db != db || runner.features == nil || runner.runs == nil {
				t.Error("expected database and repositories to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("injected database is not closed", func(t *testing.T) {
			db := setupTestDB(t)
			runner := NewRunner(RunnerOpts{DB: db})
			if err := runner.Close(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := db.Ping(); err != nil {
				t.Errorf("expected database to stay open, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		seen := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if seen[cmd.Name] {
				t.Errorf("duplicate command %q", cmd.Name)
			}
			seen[cmd.Name] = true
		}
		for _, name := range []string{"sequence", "group", "merge", "compare", "reorder", "history", "cache", "serve"} {
			if !seen[name] {
				t.Errorf("expected %q command to be registered", name)
			}
		}
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")

			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "test_id"
			config.Credentials.Spotify.ClientSecret = "test_secret"

			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})

			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loadedConfig, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loadedConfig.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loadedConfig.Credentials.Spotify.AccessToken)
			}
			if loadedConfig.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loadedConfig.Credentials.Spotify.RefreshToken)
			}
			if loadedConfig.Credentials.Spotify.ClientID != "test_id" {
				t.Errorf("expected client id to survive, got %s", loadedConfig.Credentials.Spotify.ClientID)
			}
		})

		t.Run("handles nil config error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})
			runner.config = nil

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("handles nil token", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			err := runner.saveTokens(nil)
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
			if err != nil && !strings.Contains(err.Error(), "token cannot be nil") {
				t.Errorf("expected nil token message, got %v", err)
			}
		})

		t.Run("empty configPath updates memory only", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "new_token"}); err != nil {
				t.Fatalf("expected no error with empty path, got %v", err)
			}
			if config.Credentials.Spotify.AccessToken != "new_token" {
				t.Error("expected config to be updated in memory")
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			blocker := filepath.Join(t.TempDir(), "file")
			if err := os.WriteFile(blocker, nil, 0644); err != nil {
				t.Fatalf("failed to create blocker: %v", err)
			}

			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(blocker, "config.toml")})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil {
				t.Fatal("expected error with invalid path")
			}
			if !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})
	})

	t.Run("mixEngine", func(t *testing.T) {
		t.Run("requires a service", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard)})
			if _, err := runner.mixEngine(); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})

		t.Run("rejects invalid mixing config", func(t *testing.T) {
			runner, _ := newTestRunner(t, clubPlaylist())
			runner.config.Mixing.BeamWidth = 0
			if _, err := runner.mixEngine(); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("is built once", func(t *testing.T) {
			runner, _ := newTestRunner(t, clubPlaylist())
			first, err := runner.mixEngine()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second, _ := runner.mixEngine()
			if first != second {
				t.Error("expected the same engine on repeated calls")
			}
		})
	})

	t.Run("callerWriter", func(t *testing.T) {
		tc := []struct {
			name     string
			clientID string
			wantErr  error
		}{
			{name: "acts with the caller token", clientID: "id"},
			{name: "needs app credentials", clientID: "", wantErr: shared.ErrServiceUnavailable},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard)})
				runner.config.Credentials.Spotify.ClientID = tt.clientID
				runner.config.Credentials.Spotify.ClientSecret = "secret"

				writer, err := runner.callerWriter(context.Background(), "caller-token")
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("expected %v, got %v", tt.wantErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				svc, ok := writer.(*services.SpotifyService)
				if !ok {
					t.Fatalf("expected a Spotify service, got %T", writer)
				}
				if svc.Token().AccessToken != "caller-token" {
					t.Errorf("expected caller-token, got %s", svc.Token().AccessToken)
				}
			})
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("sequence prints JSON and records a run", func(t *testing.T) {
		runner, output := newTestRunner(t, clubPlaylist())

		if err := run(t, runner, "sequence", "--playlist", "https://open.spotify.com/playlist/p1?si=x", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got struct {
			Method  string `json:"method"`
			Entries []struct {
				TrackID string `json:"track_id"`
			} `json:"entries"`
			TransitionCost *float64 `json:"transition_cost"`
		}
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("failed to decode output %q: %v", output.String(), err)
		}
		if got.Method != "beam" {
			t.Errorf("expected beam, got %q", got.Method)
		}
		if got.TransitionCost == nil || *got.TransitionCost != 20 {
			t.Errorf("expected cost 20, got %v", got.TransitionCost)
		}

		runs, err := runner.runs.List(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 1 || runs[0].Method() != "beam" || runs[0].PlaylistID() != "p1" {
			t.Fatalf("expected one beam run for p1, got %d", len(runs))
		}
		if want := []string{"a", "c", "b"}; !reflect.DeepEqual(runs[0].TrackIDs(), want) {
			t.Errorf("expected recorded order %v, got %v", want, runs[0].TrackIDs())
		}
	})

	t.Run("sequence caches resolved features", func(t *testing.T) {
		runner, _ := newTestRunner(t, clubPlaylist())

		if err := run(t, runner, "sequence", "--playlist", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cached, err := runner.features.GetMany([]string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cached) != 3 {
			t.Errorf("expected 3 cached records, got %d", len(cached))
		}
	})

	t.Run("sequence apply writes the order back", func(t *testing.T) {
		srv := clubPlaylist()
		runner, _ := newTestRunner(t, srv)

		if err := run(t, runner, "sequence", "--playlist", "p1", "--apply"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"spotify:track:a", "spotify:track:c", "spotify:track:b"}
		if got := srv.Replaced["p1"]; !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("group writes CSV to a file", func(t *testing.T) {
		runner, output := newTestRunner(t, clubPlaylist())
		path := filepath.Join(t.TempDir(), "out", "order.csv")

		if err := run(t, runner, "group", "--playlist", "p1", "--clusters", "1", "--output", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.HasPrefix(content, "Position,ID,URI,") {
			t.Errorf("expected CSV header, got %q", content)
		}
		if lines := strings.Count(strings.TrimSpace(content), "\n"); lines != 3 {
			t.Errorf("expected 3 data rows, got %d", lines)
		}
		if !strings.Contains(output.String(), "Written to") {
			t.Errorf("expected confirmation, got %q", output.String())
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		runner, _ := newTestRunner(t, clubPlaylist())
		err := run(t, runner, "sequence", "--playlist", "p1", "--format", "xml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("invalid playlist link", func(t *testing.T) {
		runner, _ := newTestRunner(t, clubPlaylist())
		err := run(t, runner, "sequence", "--playlist", "https://open.spotify.com/album/x")
		if !errors.Is(err, shared.ErrInvalidPlaylistLink) {
			t.Errorf("expected ErrInvalidPlaylistLink, got %v", err)
		}
	})

	t.Run("merge and compare", func(t *testing.T) {
		srv := tu.NewMockService("pa", tu.ClubRecord("a1", 100), tu.ClubRecord("a2", 140))
		srv.AddPlaylist("pb", tu.ClubRecord("b1", 141), tu.ClubRecord("b2", 101), tu.ClubRecord("b3", 120))
		runner, output := newTestRunner(t, srv)

		if err := run(t, runner, "merge", "--a", "pa", "--b", "pb"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Playlist pa + Playlist pb") {
			t.Errorf("expected merge title, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "compare", "--a", "pa", "--b", "pa", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got struct {
			Similarity float64 `json:"similarity_percentage"`
		}
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("failed to decode output %q: %v", output.String(), err)
		}
		if got.Similarity <= 0 || got.Similarity > 100 {
			t.Errorf("expected similarity in (0,100], got %v", got.Similarity)
		}
	})

	t.Run("reorder", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			want    []string
			wantErr error
		}{
			{
				name: "explicit uris",
				args: []string{"reorder", "--playlist", "p1", "--uris", "spotify:track:c,spotify:track:a"},
				want: []string{"spotify:track:c", "spotify:track:a"},
			},
			{
				name:    "no order given",
				args:    []string{"reorder", "--playlist", "p1"},
				wantErr: shared.ErrMissingArgument,
			},
			{
				name:    "unknown run",
				args:    []string{"reorder", "--playlist", "p1", "--run", "99"},
				wantErr: shared.ErrRunNotFound,
			},
			{
				name:    "both sources",
				args:    []string{"reorder", "--playlist", "p1", "--run", "1", "--uris", "x"},
				wantErr: shared.ErrInvalidArgument,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := clubPlaylist()
				runner, _ := newTestRunner(t, srv)

				err := run(t, runner, tt.args...)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("expected %v, got %v", tt.wantErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got := srv.Replaced["p1"]; !reflect.DeepEqual(got, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			})
		}
	})

	t.Run("reorder from a recorded run", func(t *testing.T) {
		srv := clubPlaylist()
		runner, _ := newTestRunner(t, srv)

		if err := run(t, runner, "sequence", "--playlist", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		runs, _ := runner.runs.List(nil)
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}

		if err := run(t, runner, "reorder", "--playlist", "p1", "--run", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"spotify:track:a", "spotify:track:c", "spotify:track:b"}
		if got := srv.Replaced["p1"]; !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("history", func(t *testing.T) {
		runner, output := newTestRunner(t, clubPlaylist())

		for _, cmd := range []string{"sequence", "group"} {
			if err := run(t, runner, cmd, "--playlist", "p1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		output.Reset()
		if err := run(t, runner, "history", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var views []runView
		if err := json.Unmarshal(output.Bytes(), &views); err != nil {
			t.Fatalf("failed to decode output %q: %v", output.String(), err)
		}
		if len(views) != 2 || views[0].Method != "cluster" || views[1].Method != "beam" {
			t.Fatalf("expected cluster then beam, got %+v", views)
		}

		output.Reset()
		if err := run(t, runner, "history", "--method", "beam"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(output.String(), "cluster") || !strings.Contains(output.String(), "beam") {
			t.Errorf("expected only beam runs, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "history", "show", "--run", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Transition cost: 20.00") {
			t.Errorf("expected cost line, got %q", output.String())
		}

		if err := run(t, runner, "history", "delete", "--run", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := run(t, runner, "history", "show", "--run", "1"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("cache", func(t *testing.T) {
		runner, output := newTestRunner(t, clubPlaylist())

		if err := run(t, runner, "cache", "warm", "--playlist", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Tracks with features: 3") {
			t.Errorf("expected resolved count, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "cache", "list", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var records []models.FeatureRecord
		if err := json.Unmarshal(output.Bytes(), &records); err != nil {
			t.Fatalf("failed to decode output %q: %v", output.String(), err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records, got %d", len(records))
		}

		output.Reset()
		if err := run(t, runner, "cache", "clear"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Removed 3 cached records") {
			t.Errorf("expected removal count, got %q", output.String())
		}
	})

	t.Run("cache warm requires caching enabled", func(t *testing.T) {
		runner, _ := newTestRunner(t, clubPlaylist())
		runner.config.Resolver.Cache = false
		if err := run(t, runner, "cache", "warm", "--playlist", "p1"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("service errors surface", func(t *testing.T) {
		srv := clubPlaylist()
		srv.Err = shared.ErrRateLimited
		runner, _ := newTestRunner(t, srv)

		if err := run(t, runner, "sequence", "--playlist", "p1"); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("expired token on a service without OAuth", func(t *testing.T) {
		srv := clubPlaylist()
		srv.Err = shared.ErrTokenExpired
		runner, _ := newTestRunner(t, srv)

		err := run(t, runner, "sequence", "--playlist", "p1")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("spotify playlists", func(t *testing.T) {
		srv := clubPlaylist()
		srv.AddPlaylist("p2", tu.ClubRecord("z", 128))
		runner, output := newTestRunner(t, srv)

		if err := run(t, runner, "spotify", "playlists", "--limit", "1", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var playlists []models.Playlist
		if err := json.Unmarshal(output.Bytes(), &playlists); err != nil {
			t.Fatalf("failed to decode output %q: %v", output.String(), err)
		}
		if len(playlists) != 1 {
			t.Errorf("expected limit to keep 1 playlist, got %d", len(playlists))
		}
	})

	t.Run("setup config writes template", func(t *testing.T) {
		runner, output := newTestRunner(t, clubPlaylist())
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := newApp(runner).Run(context.Background(), []string{"setlist", "--config", path, "setup", "config"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "Config written") {
			t.Errorf("expected confirmation, got %q", output.String())
		}

		if err := newApp(runner).Run(context.Background(), []string{"setlist", "--config", path, "setup", "config"}); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("setup database migrates, reports and rolls back", func(t *testing.T) {
		runner, output := newTestRunner(t, clubPlaylist())
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")

		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "data", "setlist.db")
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		setup := func(args ...string) string {
			t.Helper()
			output.Reset()
			argv := append([]string{"setlist", "--config", path, "setup", "database"}, args...)
			if err := newApp(runner).Run(context.Background(), argv); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return output.String()
		}

		if got := setup(); !strings.Contains(got, "✓ 0000 create_features") || !strings.Contains(got, "✓ 0001 create_runs") {
			t.Errorf("expected both migrations applied, got %q", got)
		}
		tu.AssertFileExists(t, config.Database.Path)

		setup("--rollback")
		if got := setup("--status"); !strings.Contains(got, "✓ 0000 create_features") || strings.Contains(got, "✓ 0001 create_runs") {
			t.Errorf("expected only the first migration applied, got %q", got)
		}
	})

	t.Run("config file is loaded", func(t *testing.T) {
		runner, _ := newTestRunner(t, clubPlaylist())
		path := filepath.Join(t.TempDir(), "config.toml")

		config := shared.DefaultConfig()
		config.Mixing.BeamWidth = 7
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if err := newApp(runner).Run(context.Background(), []string{"setlist", "--config", path, "history"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runner.config.Mixing.BeamWidth != 7 {
			t.Errorf("expected beam width 7 from file, got %d", runner.config.Mixing.BeamWidth)
		}
	})
}
