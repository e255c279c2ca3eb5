// Package storage implements the storage server: the data-plane Storage
// interface (size/read/write) and control-plane Command interface
// (create/delete/copy) described in spec §4.2, plus the startup sequence
// that registers a storage server's local inventory with the naming
// server.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/registration"
	"github.com/sandia-minimega/dfs/internal/rpc"
	"github.com/sandia-minimega/dfs/internal/stubs"
	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// Server is a storage server rooted at a local directory. Every path it
// serves is interpreted relative to that root. size/read/write/create/
// delete are serialized through a single mutex per spec §5 -- the core
// correctness concern here is file metadata consistency, not raw I/O
// throughput; copy composes the lower-level operations and is
// deliberately not serialized at this granularity (callers holding an
// exclusive naming-server lock are responsible for excluding concurrent
// access).
type Server struct {
	root string

	mu sync.Mutex

	storageSkel *rpc.Skeleton
	commandSkel *rpc.Skeleton

	ftp *ftpFront
}

// NewServer creates a storage server rooted at root. root is created if
// it does not already exist.
func NewServer(root string) (*Server, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Server{root: root}, nil
}

func (s *Server) realPath(p dpath.Path) string {
	parts := append([]string{s.root}, p.Components()...)
	return filepath.Join(parts...)
}

// --- data plane ---

func (s *Server) Size(path dpath.Path) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := os.Stat(s.realPath(path))
	if err != nil || fi.IsDir() {
		return 0, rpc.Newf(rpc.FileNotFound, "not a file: %v", path)
	}
	return fi.Size(), nil
}

func (s *Server) Read(path dpath.Path, offset int64, length int32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.realPath(path))
	if err != nil {
		return nil, rpc.Newf(rpc.FileNotFound, "not a file: %v", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return nil, rpc.Newf(rpc.FileNotFound, "not a file: %v", path)
	}

	if offset < 0 || length < 0 || offset+int64(length) > fi.Size() {
		return nil, rpc.Newf(rpc.OutOfBounds, "read %v..%v exceeds size %v", offset, offset+int64(length), fi.Size())
	}

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, rpc.Newf(rpc.IO, "read %v: %v", path, err)
	}
	return buf, nil
}

func (s *Server) Write(path dpath.Path, offset int64, data []byte) error {
	if data == nil {
		return rpc.Newf(rpc.NullArg, "write %v: nil data", path)
	}
	if offset < 0 {
		return rpc.Newf(rpc.OutOfBounds, "write offset %v < 0", offset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.realPath(path), os.O_WRONLY, 0644)
	if err != nil {
		return rpc.Newf(rpc.FileNotFound, "not a file: %v", path)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return rpc.Newf(rpc.IO, "write %v: %v", path, err)
	}
	return nil
}

// --- control plane ---

func (s *Server) Create(path dpath.Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path.IsRoot() {
		return false, nil
	}

	real := s.realPath(path)
	if _, err := os.Stat(real); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(real), 0755); err != nil {
		return false, rpc.Newf(rpc.IO, "create %v: %v", path, err)
	}

	f, err := os.OpenFile(real, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return false, rpc.Newf(rpc.IO, "create %v: %v", path, err)
	}
	f.Close()
	return true, nil
}

func (s *Server) Delete(path dpath.Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path.IsRoot() {
		return false, nil
	}

	real := s.realPath(path)
	if _, err := os.Stat(real); err != nil {
		return false, nil
	}

	if err := os.RemoveAll(real); err != nil {
		return false, rpc.Newf(rpc.IO, "delete %v: %v", path, err)
	}
	return true, nil
}

func (s *Server) Copy(path dpath.Path, source stubs.StorageStub) (bool, error) {
	if _, err := s.Delete(path); err != nil {
		return false, err
	}
	if _, err := s.Create(path); err != nil {
		return false, err
	}

	size, err := source.Size(path)
	if err != nil {
		return false, err
	}
	data, err := source.Read(path, 0, int32(size))
	if err != nil {
		return false, err
	}
	// an empty file's contents arrive over the wire as a nil slice
	if data == nil {
		data = []byte{}
	}
	if err := s.Write(path, 0, data); err != nil {
		return false, err
	}
	return true, nil
}

// --- startup sequence ---

// Enumerate walks the local root recursively and returns every regular
// file as a path relative to the root (step 3 of the startup sequence).
func (s *Server) Enumerate() ([]dpath.Path, error) {
	var out []dpath.Path

	err := filepath.Walk(s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		parsed, err := dpath.Parse("/" + filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		out = append(out, parsed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// PruneEmptyDirs recursively removes empty directories under the local
// root, bottom-up (step 6 of the startup sequence), leaving the root
// itself even if it ends up empty.
func (s *Server) PruneEmptyDirs() error {
	return s.pruneDir(s.root, true)
}

func (s *Server) pruneDir(dir string, isRoot bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			child := filepath.Join(dir, e.Name())
			if err := s.pruneDir(child, false); err != nil {
				return err
			}
		}
	}
	if isRoot {
		return nil
	}

	entries, err = os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dir)
	}
	return nil
}

// Start binds the Storage and Command skeletons, enumerates the local
// root, registers with the naming server, deletes any duplicates it
// reports, and prunes directories left empty by that deletion. storageAddr
// and commandAddr may be empty to bind an ephemeral port.
func (s *Server) Start(storageAddr, commandAddr, namingRegistrationAddr string) error {
	s.storageSkel = rpc.NewSkeleton(storageAddr, map[string]rpc.Handler{
		stubs.MethodSize: func(args interface{}) (interface{}, error) {
			a := args.(stubs.SizeArgs)
			n, err := s.Size(a.Path)
			if err != nil {
				return nil, err
			}
			return stubs.SizeResult{Size: n}, nil
		},
		stubs.MethodRead: func(args interface{}) (interface{}, error) {
			a := args.(stubs.ReadArgs)
			data, err := s.Read(a.Path, a.Offset, a.Length)
			if err != nil {
				return nil, err
			}
			return stubs.ReadResult{Data: data}, nil
		},
		stubs.MethodWrite: func(args interface{}) (interface{}, error) {
			a := args.(stubs.WriteArgs)
			if err := s.Write(a.Path, a.Offset, a.Data); err != nil {
				return nil, err
			}
			return stubs.BoolResult{OK: true}, nil
		},
	})
	if err := s.storageSkel.Start(); err != nil {
		return err
	}

	s.commandSkel = rpc.NewSkeleton(commandAddr, map[string]rpc.Handler{
		stubs.MethodCreate: func(args interface{}) (interface{}, error) {
			a := args.(stubs.CreateArgs)
			ok, err := s.Create(a.Path)
			if err != nil {
				return nil, err
			}
			return stubs.BoolResult{OK: ok}, nil
		},
		stubs.MethodDelete: func(args interface{}) (interface{}, error) {
			a := args.(stubs.DeleteArgs)
			ok, err := s.Delete(a.Path)
			if err != nil {
				return nil, err
			}
			return stubs.BoolResult{OK: ok}, nil
		},
		stubs.MethodCopy: func(args interface{}) (interface{}, error) {
			a := args.(stubs.CopyArgs)
			ok, err := s.Copy(a.Path, a.Source)
			if err != nil {
				return nil, err
			}
			return stubs.BoolResult{OK: ok}, nil
		},
	})
	if err := s.commandSkel.Start(); err != nil {
		return err
	}

	storageStub := stubs.StorageStub{Addr: s.storageSkel.Addr()}
	commandStub := stubs.CommandStub{Addr: s.commandSkel.Addr()}

	logHostStats()

	paths, err := s.Enumerate()
	if err != nil {
		return err
	}

	log.Info("registering with naming server %v: %v local files", namingRegistrationAddr, len(paths))

	reg := registration.Stub{Addr: namingRegistrationAddr}
	duplicates, err := reg.Register(storageStub, commandStub, paths)
	if err != nil {
		return err
	}

	for _, dup := range duplicates {
		log.Debug("deleting duplicate local file: %v", dup)
		if _, err := s.Delete(dup); err != nil {
			log.Error("deleting duplicate %v: %v", dup, err)
		}
	}

	return s.PruneEmptyDirs()
}

// StartFTP exposes the local root read-only over FTP on addr, in addition
// to the RPC skeletons. Optional: a storage server run without calling
// this serves only the Storage/Command interfaces.
func (s *Server) StartFTP(addr string) error {
	front, err := startFTP(s.root, addr)
	if err != nil {
		return err
	}
	s.ftp = front
	return nil
}

// Stop stops both skeletons and the FTP front-end, if started.
func (s *Server) Stop() error {
	if s.storageSkel != nil {
		if err := s.storageSkel.Stop(); err != nil {
			return err
		}
	}
	if s.commandSkel != nil {
		if err := s.commandSkel.Stop(); err != nil {
			return err
		}
	}
	if s.ftp != nil {
		if err := s.ftp.Stop(); err != nil {
			return err
		}
	}
	return nil
}

// StorageAddr returns the bound Storage skeleton address.
func (s *Server) StorageAddr() string {
	return s.storageSkel.Addr()
}

// CommandAddr returns the bound Command skeleton address.
func (s *Server) CommandAddr() string {
	return s.commandSkel.Addr()
}
