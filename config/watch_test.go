package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchProjectStashFiresOnChange(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ProjectMarkerFile), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	dir, err := stashDir(root)
	if err != nil {
		t.Skipf("cannot determine platform config dir in this environment: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	if err := os.WriteFile(filepath.Join(dir, "instance-name"), []byte("myinstance\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	w, err := WatchProjectStash(ctx, root, func(ep *Endpoint, err error) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("WatchProjectStash: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "database"), []byte("appdb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected onChange to fire after a stash file write")
	}
}

func TestWatchProjectStashNoProjectIsError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "noproject")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := WatchProjectStash(context.Background(), dir, func(*Endpoint, error) {})
	if err == nil {
		t.Fatal("expected an error when no project marker is found")
	}
}
