package storage

import (
	"os"
	"testing"

	"github.com/sandia-minimega/dfs/internal/dpath"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir, err := os.MkdirTemp("", "dfsstored-test-")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := NewServer(dir)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	s := newTestServer(t)
	path := dpath.MustParse("/a/b.txt")

	ok, err := s.Create(path)
	if err != nil || !ok {
		t.Fatalf("Create = %v, %v", ok, err)
	}

	if err := s.Write(path, 0, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	size, err := s.Size(path)
	if err != nil || size != 5 {
		t.Fatalf("Size = %v, %v, want 5, nil", size, err)
	}

	data, err := s.Read(path, 0, 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("Read = %q, %v, want hello, nil", data, err)
	}
}

func TestCreateRejectsDuplicateAndRoot(t *testing.T) {
	s := newTestServer(t)
	path := dpath.MustParse("/f")

	if ok, err := s.Create(path); err != nil || !ok {
		t.Fatalf("first Create = %v, %v", ok, err)
	}
	if ok, err := s.Create(path); err != nil || ok {
		t.Fatalf("duplicate Create = %v, %v, want false, nil", ok, err)
	}
	if ok, err := s.Create(dpath.Root()); err != nil || ok {
		t.Fatalf("Create(root) = %v, %v, want false, nil", ok, err)
	}
}

func TestReadOutOfBounds(t *testing.T) {
	s := newTestServer(t)
	path := dpath.MustParse("/f")
	if _, err := s.Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Write(path, 0, []byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := s.Read(path, 0, 10); err == nil {
		t.Fatal("expected OutOfBounds reading past end of file")
	}
}

func TestDeleteDirectoryRemovesContentsRecursively(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.Create(dpath.MustParse("/dir/a")); err != nil {
		t.Fatalf("Create /dir/a: %v", err)
	}
	if _, err := s.Create(dpath.MustParse("/dir/b")); err != nil {
		t.Fatalf("Create /dir/b: %v", err)
	}

	ok, err := s.Delete(dpath.MustParse("/dir"))
	if err != nil || !ok {
		t.Fatalf("Delete(/dir) = %v, %v", ok, err)
	}

	if _, err := s.Size(dpath.MustParse("/dir/a")); err == nil {
		t.Fatal("expected /dir/a to be gone")
	}
}

func TestEnumerateSortsAncestorsBeforeDescendants(t *testing.T) {
	s := newTestServer(t)
	for _, p := range []string{"/b", "/a/c", "/a/b"} {
		if _, err := s.Create(dpath.MustParse(p)); err != nil {
			t.Fatalf("Create %v: %v", p, err)
		}
	}

	paths, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Enumerate returned %v paths, want 3", len(paths))
	}
	for i := 1; i < len(paths); i++ {
		if !paths[i-1].Less(paths[i]) {
			t.Fatalf("Enumerate not sorted: %v before %v", paths[i-1], paths[i])
		}
	}
}

func TestPruneEmptyDirsLeavesRootAndNonEmptyDirs(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.Create(dpath.MustParse("/keep/file")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, err := s.Create(dpath.MustParse("/empty/placeholder")); err != nil || !ok {
		t.Fatalf("Create placeholder: %v, %v", ok, err)
	}
	if ok, err := s.Delete(dpath.MustParse("/empty/placeholder")); err != nil || !ok {
		t.Fatalf("Delete placeholder: %v, %v", ok, err)
	}

	if err := s.PruneEmptyDirs(); err != nil {
		t.Fatalf("PruneEmptyDirs: %v", err)
	}

	if _, err := s.Size(dpath.MustParse("/keep/file")); err != nil {
		t.Fatalf("/keep/file should survive pruning: %v", err)
	}
}
