// Package naming implements the naming server: the Service and
// Registration interfaces, the storage-server registry, and the
// replication/invalidation policies that ride the directory tree's
// lock/unlock protocol (spec §4.3-§4.5).
package naming

import (
	"encoding/gob"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/rpc"
	"github.com/sandia-minimega/dfs/internal/stubs"
)

// Well-known ports the naming server binds its two skeletons to (spec
// §6). cmd/dfsnamed uses these as its flag defaults; storage servers
// have no equivalent since their ports are either user-specified or
// ephemeral.
const (
	RegistrationPort = 9667
	ServicePort      = 9668
)

// Method names on the wire for the Service interface.
const (
	MethodIsDirectory     = "Service.IsDirectory"
	MethodList            = "Service.List"
	MethodCreateFile      = "Service.CreateFile"
	MethodCreateDirectory = "Service.CreateDirectory"
	MethodDelete          = "Service.Delete"
	MethodGetStorage      = "Service.GetStorage"
	MethodLock            = "Service.Lock"
	MethodUnlock          = "Service.Unlock"
)

// Service is the naming server's client-facing remote interface (spec
// §6). isDirectory/list/createFile/createDirectory/delete/getStorage
// operate on whatever lock state the caller has already established via
// lock/unlock; the naming server does not re-acquire locks on their
// behalf (spec §4.4's note that tree reads are synchronized only by the
// protocol the caller drives).
type Service interface {
	IsDirectory(path dpath.Path) (bool, error)
	List(path dpath.Path) ([]string, error)
	CreateFile(path dpath.Path) (bool, error)
	CreateDirectory(path dpath.Path) (bool, error)
	Delete(path dpath.Path) (bool, error)
	GetStorage(path dpath.Path) (stubs.StorageStub, error)
	Lock(path dpath.Path, exclusive bool) error
	Unlock(path dpath.Path, exclusive bool) error
}

// ServiceStub is a serializable client-side proxy for Service.
type ServiceStub struct {
	Addr string
}

func (s ServiceStub) IsDirectory(path dpath.Path) (bool, error) {
	v, err := rpc.Invoke(s.Addr, MethodIsDirectory, pathArgs{Path: path})
	if err != nil {
		return false, err
	}
	return v.(boolResult).OK, nil
}

func (s ServiceStub) List(path dpath.Path) ([]string, error) {
	v, err := rpc.Invoke(s.Addr, MethodList, pathArgs{Path: path})
	if err != nil {
		return nil, err
	}
	return v.(listResult).Names, nil
}

func (s ServiceStub) CreateFile(path dpath.Path) (bool, error) {
	v, err := rpc.Invoke(s.Addr, MethodCreateFile, pathArgs{Path: path})
	if err != nil {
		return false, err
	}
	return v.(boolResult).OK, nil
}

func (s ServiceStub) CreateDirectory(path dpath.Path) (bool, error) {
	v, err := rpc.Invoke(s.Addr, MethodCreateDirectory, pathArgs{Path: path})
	if err != nil {
		return false, err
	}
	return v.(boolResult).OK, nil
}

func (s ServiceStub) Delete(path dpath.Path) (bool, error) {
	v, err := rpc.Invoke(s.Addr, MethodDelete, pathArgs{Path: path})
	if err != nil {
		return false, err
	}
	return v.(boolResult).OK, nil
}

func (s ServiceStub) GetStorage(path dpath.Path) (stubs.StorageStub, error) {
	v, err := rpc.Invoke(s.Addr, MethodGetStorage, pathArgs{Path: path})
	if err != nil {
		return stubs.StorageStub{}, err
	}
	return v.(getStorageResult).Storage, nil
}

func (s ServiceStub) Lock(path dpath.Path, exclusive bool) error {
	_, err := rpc.Invoke(s.Addr, MethodLock, lockArgs{Path: path, Exclusive: exclusive})
	return err
}

func (s ServiceStub) Unlock(path dpath.Path, exclusive bool) error {
	_, err := rpc.Invoke(s.Addr, MethodUnlock, lockArgs{Path: path, Exclusive: exclusive})
	return err
}

// wire argument/result envelopes.
type (
	pathArgs struct {
		Path dpath.Path
	}
	lockArgs struct {
		Path      dpath.Path
		Exclusive bool
	}
	boolResult struct {
		OK bool
	}
	listResult struct {
		Names []string
	}
	getStorageResult struct {
		Storage stubs.StorageStub
	}
)

func init() {
	gob.Register(pathArgs{})
	gob.Register(lockArgs{})
	gob.Register(boolResult{})
	gob.Register(listResult{})
	gob.Register(getStorageResult{})
	gob.Register(ServiceStub{})
}
