package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	t.Parallel()

	f := NewFile(filepath.Join(t.TempDir(), "state.yaml"), nil)
	st, err := f.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.WatchList) != 0 {
		t.Fatalf("watch_list=%v", st.WatchList)
	}
	if st.MapTheme != "dark" {
		t.Fatalf("theme=%q", st.MapTheme)
	}
}

func TestFileSave_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	f := NewFile(path, nil)
	in := State{WatchList: []string{"!ab12", "!cd34"}, MapTheme: "topo"}
	if err := f.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}

	out, err := f.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(out.WatchList, in.WatchList) || out.MapTheme != "topo" {
		t.Fatalf("state=%+v", out)
	}
	if out.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}
}

func TestFileLoad_CorruptFile_ReturnsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(path, []byte("meshWatchList: {not: [a list"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	st, err := NewFile(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.WatchList) != 0 || st.MapTheme != "dark" {
		t.Fatalf("state=%+v", st)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	st := Normalize(State{WatchList: []string{"!a", "", "!b", "!a"}, MapTheme: "neon"})
	if !reflect.DeepEqual(st.WatchList, []string{"!a", "!b"}) {
		t.Fatalf("watch_list=%v", st.WatchList)
	}
	if st.MapTheme != "dark" {
		t.Fatalf("theme=%q", st.MapTheme)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Options{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error")
	}
	b, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "s.yaml")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := b.(*File); !ok {
		t.Fatalf("backend=%T", b)
	}
}
