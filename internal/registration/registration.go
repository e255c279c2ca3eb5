// Package registration defines the Registration remote interface (spec
// §4.5, §6), the interface a storage server uses once, at startup, to
// announce itself and its file inventory to the naming server.
package registration

import (
	"encoding/gob"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/rpc"
	"github.com/sandia-minimega/dfs/internal/stubs"
)

// MethodRegister is the sole method of the Registration interface.
const MethodRegister = "Registration.Register"

// Registration is the naming server's remote interface for accepting a
// new storage server into the system.
type Registration interface {
	Register(storageStub stubs.StorageStub, commandStub stubs.CommandStub, paths []dpath.Path) ([]dpath.Path, error)
}

// Stub is a serializable client-side proxy for Registration.
type Stub struct {
	Addr string
}

func (s Stub) Register(storageStub stubs.StorageStub, commandStub stubs.CommandStub, paths []dpath.Path) ([]dpath.Path, error) {
	v, err := rpc.Invoke(s.Addr, MethodRegister, RegisterArgs{
		Storage: storageStub,
		Command: commandStub,
		Paths:   paths,
	})
	if err != nil {
		return nil, err
	}
	return v.(RegisterResult).Duplicates, nil
}

type RegisterArgs struct {
	Storage stubs.StorageStub
	Command stubs.CommandStub
	Paths   []dpath.Path
}

type RegisterResult struct {
	Duplicates []dpath.Path
}

func init() {
	gob.Register(RegisterArgs{})
	gob.Register(RegisterResult{})
	gob.Register(Stub{})
}
