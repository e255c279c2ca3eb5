package naming

import (
	"math/rand"
	"sync"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/registration"
	"github.com/sandia-minimega/dfs/internal/rpc"
	"github.com/sandia-minimega/dfs/internal/stubs"
	"github.com/sandia-minimega/dfs/internal/tree"
	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// Server is the naming server: the directory tree, the storage-server
// registry, and the two skeletons (Service for clients, Registration for
// storage servers) that expose them.
type Server struct {
	tree *tree.Tree
	reg  *registry

	// registerMu serializes Register end to end (spec §5: register mutates
	// the registry and the affected ancestors while holding no tree lock,
	// so it needs its own short mutex spanning the whole operation, not
	// just its individual registry/tree sub-steps).
	registerMu sync.Mutex

	serviceSkel      *rpc.Skeleton
	registrationSkel *rpc.Skeleton
}

// NewServer creates a naming server with an empty tree and registry.
func NewServer() *Server {
	return &Server{
		tree: tree.New(),
		reg:  newRegistry(),
	}
}

var _ Service = (*Server)(nil)
var _ registration.Registration = (*Server)(nil)

// --- Service ---

func (s *Server) IsDirectory(path dpath.Path) (bool, error) {
	return s.tree.IsDirectory(path)
}

func (s *Server) List(path dpath.Path) ([]string, error) {
	return s.tree.List(path)
}

func (s *Server) CreateFile(path dpath.Path) (bool, error) {
	d, ok := s.reg.pickAny()
	if !ok {
		return false, rpc.Newf(rpc.RemoteErrorKind, "createFile %v: no registered storage servers", path)
	}

	created, err := d.Command.Create(path)
	if err != nil {
		return false, rpc.Wrap(err)
	}
	if !created {
		return false, nil
	}

	return s.tree.CreateFile(path, d)
}

func (s *Server) CreateDirectory(path dpath.Path) (bool, error) {
	return s.tree.CreateDirectory(path)
}

func (s *Server) Delete(path dpath.Path) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}

	n, ok := s.tree.Resolve(path)
	if !ok {
		return false, rpc.Newf(rpc.FileNotFound, "no such path: %v", path)
	}

	if n.IsDir {
		for _, d := range s.reg.all() {
			if _, err := d.Command.Delete(path); err != nil {
				log.Error("delete %v on %v: %v", path, d.Command.Addr, err)
			}
		}
	} else {
		for _, r := range n.ReplicaSnapshot() {
			if _, err := r.Command.Delete(path); err != nil {
				log.Error("delete %v on %v: %v", path, r.Command.Addr, err)
			}
		}
	}

	return s.tree.Delete(path)
}

func (s *Server) GetStorage(path dpath.Path) (stubs.StorageStub, error) {
	n, ok := s.tree.Resolve(path)
	if !ok || n.IsDir {
		return stubs.StorageStub{}, rpc.Newf(rpc.FileNotFound, "no such file: %v", path)
	}

	replicas := n.ReplicaSnapshot()
	if len(replicas) == 0 {
		return stubs.StorageStub{}, rpc.Newf(rpc.FileNotFound, "no replicas for %v", path)
	}

	chosen := replicas[rand.Intn(len(replicas))]
	n.SetPrimary(chosen)
	return chosen.Storage, nil
}

func (s *Server) Lock(path dpath.Path, exclusive bool) error {
	n, err := s.tree.Lock(path, exclusive)
	if err != nil {
		return err
	}
	if !exclusive && !n.IsDir {
		s.applyReplicationTrigger(path, n)
	}
	return nil
}

func (s *Server) Unlock(path dpath.Path, exclusive bool) error {
	n, ok := s.tree.Resolve(path)
	if ok && exclusive && !n.IsDir {
		s.applyInvalidation(path, n)
	}
	_, err := s.tree.Unlock(path, exclusive)
	return err
}

// --- Registration ---

func (s *Server) Register(storageStub stubs.StorageStub, commandStub stubs.CommandStub, paths []dpath.Path) ([]dpath.Path, error) {
	if storageStub.Addr == "" || commandStub.Addr == "" {
		return nil, rpc.Newf(rpc.NullArg, "register: nil storage or command stub")
	}

	// The whole check-and-insert sequence below must run as one atomic
	// unit: the registry duplicate check, and every per-path Resolve-then-
	// InsertFile decision, since each of those sub-steps takes and
	// releases its own lock (registry.mu, tree.structMu). Without
	// registerMu serializing the entire call, two concurrent Register
	// calls for an overlapping new path could both observe "not found"
	// before either inserts it, silently dropping one registration's copy
	// as neither a reported duplicate nor a tracked replica.
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	d := tree.Descriptor{Storage: storageStub, Command: commandStub}
	if s.reg.contains(d) {
		return nil, rpc.Newf(rpc.IllegalState, "storage server %v already registered", storageStub.Addr)
	}
	s.reg.add(d)

	var duplicates []dpath.Path
	for _, p := range paths {
		if p.IsRoot() {
			continue
		}
		if _, ok := s.tree.Resolve(p); ok {
			duplicates = append(duplicates, p)
			continue
		}
		if err := s.tree.InsertFile(p, d); err != nil {
			log.Error("register: inserting %v: %v", p, err)
		}
	}

	log.Info("registered storage server %v (%v paths, %v duplicates)", storageStub.Addr, len(paths), len(duplicates))
	return duplicates, nil
}

// --- lifecycle ---

// Start binds the Service skeleton on serviceAddr and the Registration
// skeleton on registrationAddr. Either may be empty to bind an ephemeral
// port.
func (s *Server) Start(serviceAddr, registrationAddr string) error {
	s.serviceSkel = rpc.NewSkeleton(serviceAddr, map[string]rpc.Handler{
		MethodIsDirectory: func(args interface{}) (interface{}, error) {
			a := args.(pathArgs)
			ok, err := s.IsDirectory(a.Path)
			if err != nil {
				return nil, err
			}
			return boolResult{OK: ok}, nil
		},
		MethodList: func(args interface{}) (interface{}, error) {
			a := args.(pathArgs)
			names, err := s.List(a.Path)
			if err != nil {
				return nil, err
			}
			return listResult{Names: names}, nil
		},
		MethodCreateFile: func(args interface{}) (interface{}, error) {
			a := args.(pathArgs)
			ok, err := s.CreateFile(a.Path)
			if err != nil {
				return nil, err
			}
			return boolResult{OK: ok}, nil
		},
		MethodCreateDirectory: func(args interface{}) (interface{}, error) {
			a := args.(pathArgs)
			ok, err := s.CreateDirectory(a.Path)
			if err != nil {
				return nil, err
			}
			return boolResult{OK: ok}, nil
		},
		MethodDelete: func(args interface{}) (interface{}, error) {
			a := args.(pathArgs)
			ok, err := s.Delete(a.Path)
			if err != nil {
				return nil, err
			}
			return boolResult{OK: ok}, nil
		},
		MethodGetStorage: func(args interface{}) (interface{}, error) {
			a := args.(pathArgs)
			stub, err := s.GetStorage(a.Path)
			if err != nil {
				return nil, err
			}
			return getStorageResult{Storage: stub}, nil
		},
		MethodLock: func(args interface{}) (interface{}, error) {
			a := args.(lockArgs)
			if err := s.Lock(a.Path, a.Exclusive); err != nil {
				return nil, err
			}
			return boolResult{OK: true}, nil
		},
		MethodUnlock: func(args interface{}) (interface{}, error) {
			a := args.(lockArgs)
			if err := s.Unlock(a.Path, a.Exclusive); err != nil {
				return nil, err
			}
			return boolResult{OK: true}, nil
		},
	})
	if err := s.serviceSkel.Start(); err != nil {
		return err
	}

	s.registrationSkel = rpc.NewSkeleton(registrationAddr, map[string]rpc.Handler{
		registration.MethodRegister: func(args interface{}) (interface{}, error) {
			a := args.(registration.RegisterArgs)
			dups, err := s.Register(a.Storage, a.Command, a.Paths)
			if err != nil {
				return nil, err
			}
			return registration.RegisterResult{Duplicates: dups}, nil
		},
	})
	return s.registrationSkel.Start()
}

func (s *Server) Stop() error {
	if s.serviceSkel != nil {
		if err := s.serviceSkel.Stop(); err != nil {
			return err
		}
	}
	if s.registrationSkel != nil {
		if err := s.registrationSkel.Stop(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) ServiceAddr() string {
	return s.serviceSkel.Addr()
}

func (s *Server) RegistrationAddr() string {
	return s.registrationSkel.Addr()
}
