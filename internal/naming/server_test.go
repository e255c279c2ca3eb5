package naming_test

import (
	"os"
	"testing"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/naming"
	"github.com/sandia-minimega/dfs/internal/rpc"
	"github.com/sandia-minimega/dfs/internal/storage"
	"github.com/sandia-minimega/dfs/internal/stubs"
)

// TestRegistrationReconciliation reproduces spec §8 scenario 6: a storage
// server registers paths [/a, /b/c] while the tree already contains /a;
// register must report /a as a duplicate and create /b, /b/c from /b/c.
func TestRegistrationReconciliation(t *testing.T) {
	ns := naming.NewServer()

	seed := stubs.StorageStub{Addr: "seed:1"}
	seedCmd := stubs.CommandStub{Addr: "seed:1"}
	if _, err := ns.Register(seed, seedCmd, []dpath.Path{dpath.MustParse("/a")}); err != nil {
		t.Fatalf("seeding /a: %v", err)
	}

	x := stubs.StorageStub{Addr: "x:1"}
	xCmd := stubs.CommandStub{Addr: "x:1"}
	dups, err := ns.Register(x, xCmd, []dpath.Path{dpath.MustParse("/a"), dpath.MustParse("/b/c")})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(dups) != 1 || !dups[0].Equals(dpath.MustParse("/a")) {
		t.Fatalf("duplicates = %v, want [/a]", dups)
	}

	isDir, err := ns.IsDirectory(dpath.MustParse("/b"))
	if err != nil || !isDir {
		t.Fatalf("IsDirectory(/b) = %v, %v, want true, nil", isDir, err)
	}
	isDir, err = ns.IsDirectory(dpath.MustParse("/b/c"))
	if err != nil || isDir {
		t.Fatalf("IsDirectory(/b/c) = %v, %v, want false, nil", isDir, err)
	}
}

func TestRegisterDuplicateDescriptorFails(t *testing.T) {
	ns := naming.NewServer()
	d := stubs.StorageStub{Addr: "s:1"}
	c := stubs.CommandStub{Addr: "s:1"}

	if _, err := ns.Register(d, c, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := ns.Register(d, c, nil); err == nil {
		t.Fatal("expected IllegalState on duplicate registration")
	} else if !rpc.Is(err, rpc.IllegalState) {
		t.Fatalf("err = %v, want IllegalState", err)
	}
}

func startStorageServer(t *testing.T, registrationAddr string) *storage.Server {
	t.Helper()

	dir, err := os.MkdirTemp("", "dfsstored-test-")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	ss, err := storage.NewServer(dir)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := ss.Start("", "", registrationAddr); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { ss.Stop() })
	return ss
}

// TestReplicationAndInvalidation reproduces spec §8 scenarios 4 and 5 end
// to end: a file accumulates enough read-lock traffic to trigger
// replication to a second storage server, and a subsequent exclusive
// lock/unlock cycle invalidates every replica but the primary.
func TestReplicationAndInvalidation(t *testing.T) {
	ns := naming.NewServer()
	if err := ns.Start("", ""); err != nil {
		t.Fatalf("naming Start: %v", err)
	}
	t.Cleanup(func() { ns.Stop() })

	s1 := startStorageServer(t, ns.RegistrationAddr())
	s2 := startStorageServer(t, ns.RegistrationAddr())

	svc := naming.ServiceStub{Addr: ns.ServiceAddr()}
	path := dpath.MustParse("/f")

	// /f does not exist yet, so the creation runs under an exclusive lock
	// on its parent directory.
	if err := svc.Lock(path.Parent(), true); err != nil {
		t.Fatalf("Lock exclusive: %v", err)
	}
	ok, err := svc.CreateFile(path)
	if err != nil || !ok {
		t.Fatalf("CreateFile = %v, %v", ok, err)
	}
	if err := svc.Unlock(path.Parent(), true); err != nil {
		t.Fatalf("Unlock exclusive: %v", err)
	}

	// 20 shared lock/unlock cycles cross the ReplicaGranularity boundary
	// and should trigger a copy to the second storage server.
	for i := 0; i < 20; i++ {
		if err := svc.Lock(path, false); err != nil {
			t.Fatalf("cycle %v lock: %v", i, err)
		}
		if err := svc.Unlock(path, false); err != nil {
			t.Fatalf("cycle %v unlock: %v", i, err)
		}
	}

	s2Storage := stubs.StorageStub{Addr: s2.StorageAddr()}
	if _, err := s2Storage.Size(path); err != nil {
		t.Fatalf("expected %v replicated onto second storage server, Size failed: %v", path, err)
	}

	// getStorage picks a primary; write through it, then an exclusive
	// lock/unlock cycle should invalidate the other replica.
	stub, err := svc.GetStorage(path)
	if err != nil {
		t.Fatalf("GetStorage: %v", err)
	}
	if err := stub.Write(path, 0, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := svc.Lock(path, true); err != nil {
		t.Fatalf("Lock exclusive: %v", err)
	}
	if err := svc.Unlock(path, true); err != nil {
		t.Fatalf("Unlock exclusive: %v", err)
	}

	s1Storage := stubs.StorageStub{Addr: s1.StorageAddr()}
	_, s1Err := s1Storage.Size(path)
	_, s2Err := s2Storage.Size(path)

	if stub.Addr == s1Storage.Addr {
		if s1Err != nil {
			t.Fatalf("primary replica %v should still exist: %v", s1Storage.Addr, s1Err)
		}
		if s2Err == nil {
			t.Fatalf("non-primary replica %v should have been invalidated", s2Storage.Addr)
		}
	} else {
		if s2Err != nil {
			t.Fatalf("primary replica %v should still exist: %v", s2Storage.Addr, s2Err)
		}
		if s1Err == nil {
			t.Fatalf("non-primary replica %v should have been invalidated", s1Storage.Addr)
		}
	}
}
