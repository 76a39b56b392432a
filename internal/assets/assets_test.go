package assets

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/resmesh/pkg/grf"
)

func writeArchive(t *testing.T, dir, name string, files ...grf.File) string {
	t.Helper()
	var buf bytes.Buffer
	if err := grf.Write(&buf, files); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLibrary_LaterArchivesShadowEarlier(t *testing.T) {
	dir := t.TempDir()
	base := writeArchive(t, dir, "data.grf",
		grf.File{Name: "data/model/a.obj", Data: []byte("base a")},
		grf.File{Name: "data/model/b.obj", Data: []byte("base b")})
	patch := writeArchive(t, dir, "patch.grf",
		grf.File{Name: "data/model/a.obj", Data: []byte("patched a")})

	lib, err := Open("euc-kr", base, patch)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer lib.Close()

	if lib.Len() != 2 {
		t.Errorf("Len() = %d, want 2", lib.Len())
	}

	tests := []struct {
		name string
		want string
	}{
		{"data/model/a.obj", "patched a"},
		{"data/model/b.obj", "base b"},
	}
	for _, tt := range tests {
		got, err := fs.ReadFile(lib, tt.name)
		if err != nil {
			t.Fatalf("ReadFile(%q) failed: %v", tt.name, err)
		}
		if string(got) != tt.want {
			t.Errorf("ReadFile(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if !lib.Contains("DATA/MODEL/B.OBJ") || lib.Contains("data/model/c.obj") {
		t.Error("Contains does not match archive content")
	}
	if _, err := lib.ReadFile("data/model/c.obj"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing entry error = %v, want fs.ErrNotExist", err)
	}
}

func TestLibrary_OpenAndCache(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "data.grf", grf.File{Name: "data/x.txt", Data: []byte("hello")})
	lib, err := Open("", path)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()

	for i := 0; i < 2; i++ {
		f, err := lib.Open("data/x.txt")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		info, _ := f.Stat()
		if info.Name() != "x.txt" || info.Size() != 5 {
			t.Errorf("Stat() = %s, %d", info.Name(), info.Size())
		}
		body, _ := io.ReadAll(f)
		f.Close()
		if string(body) != "hello" {
			t.Errorf("read %q", body)
		}
	}

	hits, misses := lib.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses; want 1, 1", hits, misses)
	}

	if _, err := lib.Open("/abs"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("invalid name error = %v", err)
	}

	lib.Close()
	if lib.Len() != 0 {
		t.Error("Close kept archives")
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open("", filepath.Join(dir, "missing.grf")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing archive error = %v", err)
	}

	path := writeArchive(t, dir, "data.grf")
	if _, err := Open("klingon", path); err == nil {
		t.Error("unknown charset accepted")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("a"); ok {
		t.Error("empty cache returned a value")
	}
	c.Set("a", []byte("1"))
	if v, ok := c.Get("a"); !ok || string(v) != "1" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d, %d", hits, misses)
	}
	c.Clear()
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Errorf("Stats() after Clear = %d, %d", hits, misses)
	}
}
