package tree

import (
	"sync"

	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/rpc"
)

// Tree is the naming server's directory tree: a root directory node plus
// the machinery the lock/unlock protocol and structural operations share.
// Structural mutation (insertion, deletion) and lookups are serialized
// through structMu, a short internal mutex distinct from the per-node
// reader/writer locks that implement the client-visible lock/unlock
// protocol (spec §5's split between "tree-structure mutations" and
// "logical reader/writer lock state").
type Tree struct {
	structMu sync.Mutex
	root     *Node

	gate *admissionGate
}

// New creates an empty tree with just the root directory.
func New() *Tree {
	return &Tree{
		root: newDirNode("", nil),
		gate: newAdmissionGate(),
	}
}

// resolveChain walks from the root to the node at path, returning every
// node along the way (root first, target last). ok is false if no node
// exists at path.
func (t *Tree) resolveChain(path dpath.Path) (chain []*Node, ok bool) {
	t.structMu.Lock()
	defer t.structMu.Unlock()

	n := t.root
	chain = append(chain, n)
	for _, c := range path.Components() {
		child, found := n.child(c)
		if !found {
			return nil, false
		}
		n = child
		chain = append(chain, n)
	}
	return chain, true
}

// Resolve returns the node at path, if any.
func (t *Tree) Resolve(path dpath.Path) (*Node, bool) {
	chain, ok := t.resolveChain(path)
	if !ok {
		return nil, false
	}
	return chain[len(chain)-1], true
}

// Lock implements the naming server's locking protocol (spec §4.3):
// admission through the fair gate, shared ancestor locks top-down, then
// the target's mode-specific acquisition. The admission gate is held for
// the whole call, including while the target acquisition blocks, so that
// a writer waiting behind existing readers still blocks later callers
// from even beginning their own ancestor acquisition -- the mechanism
// that gives the protocol its FIFO fairness without per-node queues.
//
// On success it returns the resolved node so the caller can apply the
// replication-trigger policy, which needs the node's file-specific
// bookkeeping but not the tree's internal locks.
func (t *Tree) Lock(path dpath.Path, exclusive bool) (*Node, error) {
	t.gate.acquire()
	defer t.gate.release()

	chain, ok := t.resolveChain(path)
	if !ok {
		return nil, rpc.Newf(rpc.FileNotFound, "lock: no such path: %v", path)
	}

	ancestors, target := chain[:len(chain)-1], chain[len(chain)-1]

	for _, n := range ancestors {
		n.lock.lockShared()
	}

	if exclusive {
		target.lock.lockExclusive()
	} else {
		target.lock.lockShared()
	}

	return target, nil
}

// Unlock reverses Lock: unlock the target in mode, then unlock ancestors
// bottom-up. Unlike Lock, it does not take the admission gate -- the gate
// only governs entry into the protocol, per spec §4.3.
func (t *Tree) Unlock(path dpath.Path, exclusive bool) (*Node, error) {
	chain, ok := t.resolveChain(path)
	if !ok {
		return nil, rpc.Newf(rpc.IllegalArgument, "unlock: no such path: %v", path)
	}

	ancestors, target := chain[:len(chain)-1], chain[len(chain)-1]

	if exclusive {
		target.lock.unlockExclusive()
	} else {
		target.lock.unlockShared()
	}

	for i := len(ancestors) - 1; i >= 0; i-- {
		ancestors[i].lock.unlockShared()
	}

	return target, nil
}

// IsDirectory reports whether path resolves to a directory node.
func (t *Tree) IsDirectory(path dpath.Path) (bool, error) {
	n, ok := t.Resolve(path)
	if !ok {
		return false, rpc.Newf(rpc.FileNotFound, "no such path: %v", path)
	}
	return n.IsDir, nil
}

// List returns the child names of the directory at path.
func (t *Tree) List(path dpath.Path) ([]string, error) {
	n, ok := t.Resolve(path)
	if !ok || !n.IsDir {
		return nil, rpc.Newf(rpc.FileNotFound, "no such directory: %v", path)
	}
	return n.ChildNames(), nil
}

// CreateFile inserts a new file node at path with sole replica d. parent
// must already exist and be a directory; path must not already exist.
func (t *Tree) CreateFile(path dpath.Path, d Descriptor) (bool, error) {
	t.structMu.Lock()
	defer t.structMu.Unlock()

	return t.createLocked(path, func(name string, parent *Node) (*Node, bool) {
		return newFileNode(name, parent, d), true
	})
}

// CreateDirectory inserts a new empty directory node at path.
func (t *Tree) CreateDirectory(path dpath.Path) (bool, error) {
	t.structMu.Lock()
	defer t.structMu.Unlock()

	return t.createLocked(path, func(name string, parent *Node) (*Node, bool) {
		return newDirNode(name, parent), true
	})
}

func (t *Tree) createLocked(path dpath.Path, build func(name string, parent *Node) (*Node, bool)) (bool, error) {
	if path.IsRoot() {
		return false, rpc.Newf(rpc.IllegalArgument, "cannot create root")
	}

	parentPath := path.Parent()
	parent := t.root
	for _, c := range parentPath.Components() {
		child, ok := parent.child(c)
		if !ok {
			return false, rpc.Newf(rpc.FileNotFound, "no such directory: %v", parentPath)
		}
		parent = child
	}
	if !parent.IsDir {
		return false, rpc.Newf(rpc.FileNotFound, "not a directory: %v", parentPath)
	}

	name := path.Last()
	if _, exists := parent.child(name); exists {
		return false, nil
	}

	n, ok := build(name, parent)
	if !ok {
		return false, nil
	}
	parent.addChild(n)
	return true, nil
}

// EnsureDirectory walks path from the root, creating any missing
// directory nodes along the way, and returns the directory node at path.
// Used by registration (spec §4.5), which lazily creates ancestors for
// incoming paths while holding no client-visible lock.
func (t *Tree) EnsureDirectory(path dpath.Path) (*Node, error) {
	t.structMu.Lock()
	defer t.structMu.Unlock()

	n := t.root
	for _, c := range path.Components() {
		child, ok := n.child(c)
		if !ok {
			child = newDirNode(c, n)
			n.addChild(child)
		} else if !child.IsDir {
			return nil, rpc.Newf(rpc.IllegalState, "path component %v is a file, not a directory", c)
		}
		n = child
	}
	return n, nil
}

// InsertFile inserts a file node at path with sole replica d, creating
// any missing ancestor directories. Used by registration for paths not
// already present in the tree.
func (t *Tree) InsertFile(path dpath.Path, d Descriptor) error {
	if path.IsRoot() {
		return rpc.Newf(rpc.IllegalArgument, "cannot insert root as a file")
	}

	parent, err := t.EnsureDirectory(path.Parent())
	if err != nil {
		return err
	}

	t.structMu.Lock()
	defer t.structMu.Unlock()

	name := path.Last()
	if _, exists := parent.child(name); exists {
		return nil
	}
	parent.addChild(newFileNode(name, parent, d))
	return nil
}

// Delete removes the node at path from its parent. For a directory, the
// caller is responsible for invoking delete against every registered
// storage server first (spec §4.4) -- Delete here only detaches the
// subtree from the tree structure.
func (t *Tree) Delete(path dpath.Path) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}

	t.structMu.Lock()
	defer t.structMu.Unlock()

	parentPath := path.Parent()
	parent := t.root
	for _, c := range parentPath.Components() {
		child, ok := parent.child(c)
		if !ok {
			return false, rpc.Newf(rpc.FileNotFound, "no such path: %v", path)
		}
		parent = child
	}

	name := path.Last()
	if _, ok := parent.child(name); !ok {
		return false, rpc.Newf(rpc.FileNotFound, "no such path: %v", path)
	}
	parent.removeChild(name)
	return true, nil
}
