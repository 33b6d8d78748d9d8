package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bk-go/internal/bk"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestManagerScan(t *testing.T) {
	t.Run("records every entry including the root", func(t *testing.T) {
		root := t.TempDir()
		mtime := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		writeFile(t, filepath.Join(root, "a.txt"), "alpha", mtime)
		writeFile(t, filepath.Join(root, "sub", "b.txt"), "bravo", mtime.Add(time.Minute))

		state, err := NewManager().Scan(context.Background(), root)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}

		absRoot, _ := filepath.Abs(root)
		wantPaths := []string{
			absRoot,
			filepath.Join(absRoot, "a.txt"),
			filepath.Join(absRoot, "sub"),
			filepath.Join(absRoot, "sub", "b.txt"),
		}
		if len(state) != len(wantPaths) {
			t.Fatalf("scan recorded %d entries, want %d: %v", len(state), len(wantPaths), state)
		}
		for _, path := range wantPaths {
			if _, ok := state[path]; !ok {
				t.Errorf("scan missing %s", path)
			}
		}

		if got := state[filepath.Join(absRoot, "a.txt")]; got != mtime.Unix() {
			t.Errorf("a.txt mtime = %d, want %d", got, mtime.Unix())
		}
		if got := state[filepath.Join(absRoot, "sub", "b.txt")]; got != mtime.Add(time.Minute).Unix() {
			t.Errorf("sub/b.txt mtime = %d, want %d", got, mtime.Add(time.Minute).Unix())
		}
	})

	t.Run("missing root reports not found", func(t *testing.T) {
		_, err := NewManager().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, bk.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("canceled context aborts the walk", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a.txt"), "alpha", time.Now())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewManager().Scan(ctx, root); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("symlink mtime is the link's own", func(t *testing.T) {
		root := t.TempDir()
		target := filepath.Join(root, "target.txt")
		writeFile(t, target, "data", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		link := filepath.Join(root, "link")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		state, err := NewManager().Scan(context.Background(), root)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}

		absRoot, _ := filepath.Abs(root)
		linkInfo, err := os.Lstat(link)
		if err != nil {
			t.Fatalf("lstat link: %v", err)
		}
		if got := state[filepath.Join(absRoot, "link")]; got != linkInfo.ModTime().Unix() {
			t.Errorf("link mtime = %d, want lstat mtime %d", got, linkInfo.ModTime().Unix())
		}
	})
}

func TestManagerCopyFile(t *testing.T) {
	t.Run("copies content and preserves mtime", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "src.txt")
		mtime := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		writeFile(t, src, "payload", mtime)

		dst := filepath.Join(t.TempDir(), "nested", "dst.txt")
		if err := NewManager().CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile: %v", err)
		}

		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("reading copy: %v", err)
		}
		if string(data) != "payload" {
			t.Errorf("copied content = %q, want %q", data, "payload")
		}

		info, err := os.Stat(dst)
		if err != nil {
			t.Fatalf("stat copy: %v", err)
		}
		if !info.ModTime().Equal(mtime) {
			t.Errorf("copied mtime = %v, want %v", info.ModTime(), mtime)
		}
	})

	t.Run("recreates symlinks instead of following them", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "target.txt")
		writeFile(t, target, "data", time.Now())
		link := filepath.Join(dir, "link")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		dst := filepath.Join(t.TempDir(), "link")
		if err := NewManager().CopyFile(link, dst); err != nil {
			t.Fatalf("CopyFile: %v", err)
		}

		got, err := os.Readlink(dst)
		if err != nil {
			t.Fatalf("copy is not a symlink: %v", err)
		}
		if got != target {
			t.Errorf("link target = %s, want %s", got, target)
		}
	})
}

func TestManagerCopyTree(t *testing.T) {
	src := t.TempDir()
	mtime := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(src, "a.txt"), "alpha", mtime)
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "bravo", mtime)

	dst := filepath.Join(t.TempDir(), "copy")
	if err := NewManager().CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}

	for _, rel := range []string{"a.txt", filepath.Join("sub", "b.txt")} {
		if _, err := os.Stat(filepath.Join(dst, rel)); err != nil {
			t.Errorf("missing %s in copied tree: %v", rel, err)
		}
	}
}
