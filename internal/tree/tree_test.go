package tree

import (
	"testing"
	"time"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/stubs"
)

func descriptor(addr string) Descriptor {
	return Descriptor{
		Storage: stubs.StorageStub{Addr: addr},
		Command: stubs.CommandStub{Addr: addr},
	}
}

func TestCreateDirectoryAndFile(t *testing.T) {
	tr := New()

	ok, err := tr.CreateDirectory(dpath.MustParse("/etc"))
	if err != nil || !ok {
		t.Fatalf("CreateDirectory(/etc) = %v, %v", ok, err)
	}

	ok, err = tr.CreateFile(dpath.MustParse("/etc/conf.txt"), descriptor("s1:1"))
	if err != nil || !ok {
		t.Fatalf("CreateFile(/etc/conf.txt) = %v, %v", ok, err)
	}

	// re-creating returns false, not an error
	ok, err = tr.CreateFile(dpath.MustParse("/etc/conf.txt"), descriptor("s1:1"))
	if err != nil || ok {
		t.Fatalf("second CreateFile = %v, %v, want false, nil", ok, err)
	}

	names, err := tr.List(dpath.MustParse("/etc"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "conf.txt" {
		t.Fatalf("List(/etc) = %v, want [conf.txt]", names)
	}
}

func TestCreateFileMissingParent(t *testing.T) {
	tr := New()
	if _, err := tr.CreateFile(dpath.MustParse("/a/b"), descriptor("s1:1")); err == nil {
		t.Fatal("expected FileNotFound for missing parent")
	}
}

func TestDeleteThenRecreate(t *testing.T) {
	tr := New()
	path := dpath.MustParse("/f")

	if ok, _ := tr.CreateFile(path, descriptor("s1:1")); !ok {
		t.Fatal("CreateFile failed")
	}
	if ok, err := tr.Delete(path); err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if ok, err := tr.CreateFile(path, descriptor("s1:1")); err != nil || !ok {
		t.Fatalf("CreateFile after delete = %v, %v, want true, nil", ok, err)
	}
}

func TestInsertFileCreatesMissingAncestors(t *testing.T) {
	tr := New()
	if err := tr.InsertFile(dpath.MustParse("/b/c"), descriptor("x:1")); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}

	isDir, err := tr.IsDirectory(dpath.MustParse("/b"))
	if err != nil || !isDir {
		t.Fatalf("IsDirectory(/b) = %v, %v, want true, nil", isDir, err)
	}
	isDir, err = tr.IsDirectory(dpath.MustParse("/b/c"))
	if err != nil || isDir {
		t.Fatalf("IsDirectory(/b/c) = %v, %v, want false, nil", isDir, err)
	}
}

// TestReaderWriterFairness reproduces spec §8 scenario 3: R1 holds a
// shared lock, W then R2 queue behind it; once R1 releases, completion
// order must be W then R2.
func TestReaderWriterFairness(t *testing.T) {
	tr := New()
	path := dpath.MustParse("/f")
	if _, err := tr.CreateFile(path, descriptor("s1:1")); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if _, err := tr.Lock(path, false); err != nil {
		t.Fatalf("R1 lock: %v", err)
	}

	order := make(chan string, 2)

	wStarted := make(chan struct{})
	go func() {
		close(wStarted)
		if _, err := tr.Lock(path, true); err != nil {
			t.Errorf("W lock: %v", err)
			return
		}
		order <- "W"
		tr.Unlock(path, true)
	}()
	<-wStarted
	time.Sleep(20 * time.Millisecond) // let W block on the admission gate / leaf lock

	r2Started := make(chan struct{})
	go func() {
		close(r2Started)
		if _, err := tr.Lock(path, false); err != nil {
			t.Errorf("R2 lock: %v", err)
			return
		}
		order <- "R2"
		tr.Unlock(path, false)
	}()
	<-r2Started
	time.Sleep(20 * time.Millisecond) // let R2 block behind W's held admission gate

	if _, err := tr.Unlock(path, false); err != nil {
		t.Fatalf("R1 unlock: %v", err)
	}

	first := <-order
	second := <-order
	if first != "W" || second != "R2" {
		t.Fatalf("completion order = %v, %v, want W, R2", first, second)
	}
}

func TestBumpRefreshesAtGranularity(t *testing.T) {
	n := newFileNode("f", nil, descriptor("s1:1"))

	var lastRefreshed bool
	var lastCoarse uint64
	for i := 0; i < ReplicaGranularity; i++ {
		lastRefreshed, lastCoarse = n.Bump()
	}
	if !lastRefreshed {
		t.Fatal("expected refresh at the granularity boundary")
	}
	if lastCoarse != ReplicaGranularity {
		t.Fatalf("coarse = %v, want %v", lastCoarse, ReplicaGranularity)
	}

	if refreshed, _ := n.Bump(); refreshed {
		t.Fatal("did not expect a refresh immediately after the boundary")
	}
}

func TestInvalidateExceptPrimary(t *testing.T) {
	n := newFileNode("f", nil, descriptor("s1:1"))
	n.AddReplica(descriptor("s2:1"))
	n.AddReplica(descriptor("s3:1"))
	n.SetPrimary(descriptor("s2:1"))

	dropped := n.InvalidateExceptPrimary()
	if len(dropped) != 2 {
		t.Fatalf("dropped = %v, want 2 entries", dropped)
	}

	remaining := n.ReplicaSnapshot()
	if len(remaining) != 1 || remaining[0].Storage.Addr != "s2:1" {
		t.Fatalf("remaining replicas = %v, want [s2:1]", remaining)
	}
}
