// Package stubs holds the serializable client-side proxy types for the
// storage server's two remote interfaces (Storage, Command). They live in
// their own package, separate from the storage server implementation, so
// that both the naming server (a Storage/Command client) and the
// registration protocol (which carries these stubs as call arguments) can
// depend on the proxy types without depending on the storage server's
// implementation package.
package stubs

import (
	"encoding/gob"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/rpc"
)

// Method names on the wire. Kept as constants so the stub and skeleton
// sides can't drift.
const (
	MethodSize   = "Storage.Size"
	MethodRead   = "Storage.Read"
	MethodWrite  = "Storage.Write"
	MethodCreate = "Command.Create"
	MethodDelete = "Command.Delete"
	MethodCopy   = "Command.Copy"
)

// Storage is the data-plane remote interface a storage server exposes.
type Storage interface {
	Size(path dpath.Path) (int64, error)
	Read(path dpath.Path, offset int64, length int32) ([]byte, error)
	Write(path dpath.Path, offset int64, data []byte) error
}

// Command is the control-plane remote interface a storage server
// exposes.
type Command interface {
	Create(path dpath.Path) (bool, error)
	Delete(path dpath.Path) (bool, error)
	Copy(path dpath.Path, source StorageStub) (bool, error)
}

// StorageStub is a serializable client-side proxy for a storage server's
// Storage interface; its address is its only state, so two stubs compare
// equal iff their addresses match.
type StorageStub struct {
	Addr string
}

func (s StorageStub) Size(path dpath.Path) (int64, error) {
	v, err := rpc.Invoke(s.Addr, MethodSize, SizeArgs{Path: path})
	if err != nil {
		return 0, err
	}
	return v.(SizeResult).Size, nil
}

func (s StorageStub) Read(path dpath.Path, offset int64, length int32) ([]byte, error) {
	v, err := rpc.Invoke(s.Addr, MethodRead, ReadArgs{Path: path, Offset: offset, Length: length})
	if err != nil {
		return nil, err
	}
	return v.(ReadResult).Data, nil
}

func (s StorageStub) Write(path dpath.Path, offset int64, data []byte) error {
	_, err := rpc.Invoke(s.Addr, MethodWrite, WriteArgs{Path: path, Offset: offset, Data: data})
	return err
}

// CommandStub is a serializable client-side proxy for a storage server's
// Command interface.
type CommandStub struct {
	Addr string
}

func (c CommandStub) Create(path dpath.Path) (bool, error) {
	v, err := rpc.Invoke(c.Addr, MethodCreate, CreateArgs{Path: path})
	if err != nil {
		return false, err
	}
	return v.(BoolResult).OK, nil
}

func (c CommandStub) Delete(path dpath.Path) (bool, error) {
	v, err := rpc.Invoke(c.Addr, MethodDelete, DeleteArgs{Path: path})
	if err != nil {
		return false, err
	}
	return v.(BoolResult).OK, nil
}

func (c CommandStub) Copy(path dpath.Path, source StorageStub) (bool, error) {
	v, err := rpc.Invoke(c.Addr, MethodCopy, CopyArgs{Path: path, Source: source})
	if err != nil {
		return false, err
	}
	return v.(BoolResult).OK, nil
}

// wire argument/result envelopes. Every type that ever rides in an
// interface{} (rpc.Invoke's args or a skeleton Handler's return value)
// must be gob-registered, so each has a concrete, registered type here.
type (
	SizeArgs struct {
		Path dpath.Path
	}
	SizeResult struct {
		Size int64
	}
	ReadArgs struct {
		Path   dpath.Path
		Offset int64
		Length int32
	}
	ReadResult struct {
		Data []byte
	}
	WriteArgs struct {
		Path   dpath.Path
		Offset int64
		Data   []byte
	}
	CreateArgs struct {
		Path dpath.Path
	}
	DeleteArgs struct {
		Path dpath.Path
	}
	CopyArgs struct {
		Path   dpath.Path
		Source StorageStub
	}
	BoolResult struct {
		OK bool
	}
)

func init() {
	gob.Register(SizeArgs{})
	gob.Register(SizeResult{})
	gob.Register(ReadArgs{})
	gob.Register(ReadResult{})
	gob.Register(WriteArgs{})
	gob.Register(CreateArgs{})
	gob.Register(DeleteArgs{})
	gob.Register(CopyArgs{})
	gob.Register(BoolResult{})
	gob.Register(StorageStub{})
	gob.Register(CommandStub{})
}
