package billy

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/zoobzio/meld"
)

func writeFile(t *testing.T, s *Store, name, content string) {
	t.Helper()
	if err := util.WriteFile(s.Filesystem(), name, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readFile(t *testing.T, s *Store, name string) string {
	t.Helper()
	data, err := util.ReadFile(s.Filesystem(), name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestStore_Open(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	writeFile(t, s, "bucket/a.txt", "AA")

	t.Run("existing", func(t *testing.T) {
		r, err := s.Open(ctx, "/bucket/a.txt")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer func() { _ = r.Close() }()
		data, _ := io.ReadAll(r)
		if string(data) != "AA" {
			t.Errorf("unexpected content: %q", string(data))
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.Open(ctx, "/bucket/missing.txt")
		if !errors.Is(err, meld.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := s.Open(ctx, "bucket/a.txt")
		if !errors.Is(err, meld.ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath, got %v", err)
		}
	})

	t.Run("bucket only", func(t *testing.T) {
		_, err := s.Open(ctx, "/bucket/")
		if !errors.Is(err, meld.ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath, got %v", err)
		}
	})
}

func TestStore_Create(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	w, err := s.Create(ctx, "/bucket/nested/dir/out.txt", "text/plain")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := readFile(t, s, "bucket/nested/dir/out.txt"); got != "hello" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestStore_LocalCompose(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	writeFile(t, s, "b/a", "AA")
	writeFile(t, s, "b/b", "BB")

	d := meld.New(meld.WithMode(meld.ModeLocal), meld.WithStore(s))

	t.Run("order preserved", func(t *testing.T) {
		if err := d.Compose(ctx, []string{"a", "b"}, "/b/ab"); err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		if got := readFile(t, s, "b/ab"); got != "AABB" {
			t.Errorf("expected AABB, got %q", got)
		}
	})

	t.Run("reverse order", func(t *testing.T) {
		if err := d.Compose(ctx, []string{"b", "a"}, "/b/ba"); err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		if got := readFile(t, s, "b/ba"); got != "BBAA" {
			t.Errorf("expected BBAA, got %q", got)
		}
	})

	t.Run("repeat overwrites", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := d.Compose(ctx, []string{"a", "b", "a"}, "/b/aba"); err != nil {
				t.Fatalf("Compose %d failed: %v", i, err)
			}
		}
		if got := readFile(t, s, "b/aba"); got != "AABBAA" {
			t.Errorf("expected AABBAA, got %q", got)
		}
	})

	t.Run("missing source leaves partial destination", func(t *testing.T) {
		err := d.Compose(ctx, []string{"a", "gone"}, "/b/partial")
		if !errors.Is(err, meld.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := readFile(t, s, "b/partial"); got != "AA" {
			t.Errorf("expected partial content AA, got %q", got)
		}
	})
}

func TestExists(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	writeFile(t, s, "bucket/here", "x")

	ok, err := meld.Exists(ctx, s, "/bucket/here")
	if err != nil || !ok {
		t.Errorf("expected true, nil; got %v, %v", ok, err)
	}
	ok, err = meld.Exists(ctx, s, "/bucket/absent")
	if err != nil || ok {
		t.Errorf("expected false, nil; got %v, %v", ok, err)
	}
	_, err = meld.Exists(ctx, s, "nobucket")
	if !errors.Is(err, meld.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestNewOS(t *testing.T) {
	s := NewOS(t.TempDir())
	ctx := context.Background()

	w, err := s.Create(ctx, "/bucket/obj", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, _ = w.Write([]byte("disk"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := readFile(t, s, "bucket/obj"); got != "disk" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestFsPath(t *testing.T) {
	valid := map[string]string{
		"/b/a.txt":        "b/a.txt",
		"/b/dir/a.txt":    "b/dir/a.txt",
		"/b/dir/../a.txt": "b/a.txt",
		"/b/./dir//a.txt": "b/dir/a.txt",
	}
	for in, want := range valid {
		got, err := fsPath(in)
		if err != nil {
			t.Errorf("fsPath(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("fsPath(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"/b/../other/secret", "/b/..", "/b/dir/../../c/x", "/b/.", "/b/"} {
		if _, err := fsPath(in); !errors.Is(err, meld.ErrInvalidPath) {
			t.Errorf("fsPath(%q) = %v, want ErrInvalidPath", in, err)
		}
	}
}

func TestStore_LocalCompose_StaysInBucket(t *testing.T) {
	s := NewMemory()
	writeFile(t, s, "other/secret", "SECRET")
	writeFile(t, s, "b/a", "AA")
	ctx := context.Background()
	d := meld.New(meld.WithMode(meld.ModeLocal), meld.WithStore(s))

	err := d.Compose(ctx, []string{"a", "../other/secret"}, "/b/out")
	if !errors.Is(err, meld.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if got := readFile(t, s, "b/out"); got == "AASECRET" {
		t.Error("source outside the bucket must not be read")
	}

	if err := d.Compose(ctx, []string{"a", "a"}, "/b/../other/x"); !errors.Is(err, meld.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for escaping destination, got %v", err)
	}
	if _, err := s.Filesystem().Stat("other/x"); err == nil {
		t.Error("destination outside the bucket must not be created")
	}
}
