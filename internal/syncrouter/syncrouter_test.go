package syncrouter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"descant/internal/config"
	"descant/internal/eventlog"
	"descant/internal/manifest"
	"descant/internal/syncrouter/seen"
)

func TestResolveRouteFirstMatchWins(t *testing.T) {
	routes := []config.Route{
		{Kind: "audio", Variant: "instrumental", To: "${remoteRoots.audio}/Instrumental"},
		{Kind: "audio", To: "${remoteRoots.audio}/Other"},
	}
	artifact := manifest.Artifact{Kind: manifest.KindAudio, Variant: "instrumental", Path: "files/instrumental.mp3"}

	route, ok := resolveRoute(routes, artifact)
	if !ok {
		t.Fatal("expected a route match")
	}
	if route.To != "${remoteRoots.audio}/Instrumental" {
		t.Fatalf("expected the more specific first route to win, got %q", route.To)
	}
}

func TestResolveRouteMissingFieldMatchesAnything(t *testing.T) {
	routes := []config.Route{{Kind: "audio", To: "${remoteRoots.audio}"}}
	artifact := manifest.Artifact{Kind: manifest.KindAudio, Variant: "drums_only", Path: "files/drums_only.mp3"}

	route, ok := resolveRoute(routes, artifact)
	if !ok || route.To != "${remoteRoots.audio}" {
		t.Fatalf("expected variant-less route to match any variant, got %+v ok=%v", route, ok)
	}
}

func TestExpandRemoteRootsSubstitutesPlaceholder(t *testing.T) {
	got := expandRemoteRoots("${remoteRoots.audio}/Instrumental", map[string]string{"audio": "/mnt/nas"})
	if got != "/mnt/nas/Instrumental" {
		t.Fatalf("unexpected expansion: %q", got)
	}
}

func writeTestManifest(t *testing.T, jobDir string, m manifest.Manifest) {
	t.Helper()
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatalf("mkdir job dir: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "manifest.json"), data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestRunOnceSyncsArtifactsWithLocalBackend(t *testing.T) {
	outputsDir := t.TempDir()
	remoteDir := t.TempDir()
	jobDir := filepath.Join(outputsDir, "job_1")

	writeTestManifest(t, jobDir, manifest.Manifest{
		JobID:      "job_1",
		SourceType: "youtube",
		Artist:     "Artist",
		Album:      "Album",
		Title:      "Title",
		Artifacts: []manifest.Artifact{
			{Kind: manifest.KindAudio, Variant: "instrumental", Label: "Instrumental", Path: "files/instrumental.mp3", SHA256: "abc"},
		},
	})
	if err := os.MkdirAll(filepath.Join(jobDir, "files"), 0o755); err != nil {
		t.Fatalf("mkdir files: %v", err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "files", "instrumental.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	t.Setenv("HOME", t.TempDir())
	snap, _, err := config.NewSnapshot("")
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	cfg := snap.Current()
	cfg.Paths.OutputsDir = outputsDir
	cfg.Sync.Method = "local"
	cfg.Sync.SkipOnMissingRemote = true
	cfg.Sync.Routes = []config.Route{{Kind: "audio", To: "${remoteRoots.audio}"}}
	cfg.Sync.RemoteRoots = map[string]string{"audio": remoteDir}

	seenPath := filepath.Join(t.TempDir(), "seen.db")
	seenStore, err := seen.Open(seenPath)
	if err != nil {
		t.Fatalf("seen.Open: %v", err)
	}
	defer seenStore.Close()

	events, err := eventlog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	defer events.Close()

	router := New(snap, seenStore, events, nil)
	processed, err := router.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 manifest processed, got %d", processed)
	}

	if _, err := os.Stat(filepath.Join(remoteDir, "instrumental.mp3")); err != nil {
		t.Fatalf("expected artifact copied to remote dir: %v", err)
	}

	synced, err := seenStore.IsSynced(context.Background(), "job_1", "files/instrumental.mp3", "abc")
	if err != nil {
		t.Fatalf("IsSynced: %v", err)
	}
	if !synced {
		t.Fatal("expected artifact to be marked synced")
	}
}
