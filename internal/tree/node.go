// Package tree implements the naming server's directory tree: the node
// types, the hierarchical reader/writer locking protocol with its fair
// admission gate, and the per-file replication bookkeeping the
// replication and invalidation policies operate on.
package tree

import (
	"sync"

	"github.com/sandia-minimega/dfs/internal/stubs"
)

// Descriptor pairs the two stubs that together identify one registered
// storage server, per the storage-server descriptor in the data model.
// Two descriptors are equal iff both stubs are equal, which here reduces
// to comparing the remote addresses since the stub types are distinct by
// construction.
type Descriptor struct {
	Storage stubs.StorageStub
	Command stubs.CommandStub
}

// Equals reports whether d and other name the same storage server.
func (d Descriptor) Equals(other Descriptor) bool {
	return d.Storage.Addr == other.Storage.Addr && d.Command.Addr == other.Command.Addr
}

// ReplicaGranularity is the request-count sampling interval used to
// refresh a file node's coarse counter (spec default 20).
const ReplicaGranularity = 20

// Node is one entry in the directory tree: either a directory (children
// populated, file fields zero) or a file (Replicas non-empty, children
// nil). Every node owns its own rwlock.
type Node struct {
	Name   string
	Parent *Node
	IsDir  bool

	// directory fields
	childOrder []string
	children   map[string]*Node

	// file fields, guarded by bookMu since multiple readers holding the
	// node's rwlock in shared mode concurrently may each trigger a
	// replication check.
	bookMu       sync.Mutex
	Replicas     []Descriptor
	Primary      *Descriptor // most recently selected replica, for invalidation
	RequestCount uint64
	CoarseCount  uint64

	lock *rwlock
}

func newDirNode(name string, parent *Node) *Node {
	return &Node{
		Name:     name,
		Parent:   parent,
		IsDir:    true,
		children: make(map[string]*Node),
		lock:     newRWLock(),
	}
}

func newFileNode(name string, parent *Node, sole Descriptor) *Node {
	return &Node{
		Name:     name,
		Parent:   parent,
		IsDir:    false,
		Replicas: []Descriptor{sole},
		lock:     newRWLock(),
	}
}

// child looks up a named child of a directory node; ok is false if n is
// not a directory or has no such child.
func (n *Node) child(name string) (*Node, bool) {
	if !n.IsDir {
		return nil, false
	}
	c, ok := n.children[name]
	return c, ok
}

// ChildNames returns the names of a directory node's children, in the
// order they were created.
func (n *Node) ChildNames() []string {
	out := make([]string, len(n.childOrder))
	copy(out, n.childOrder)
	return out
}

// addChild inserts c as a child of directory node n. Callers must already
// hold whatever structural mutation lock protects the tree (see Tree).
func (n *Node) addChild(c *Node) {
	n.children[c.Name] = c
	n.childOrder = append(n.childOrder, c.Name)
}

// removeChild deletes the named child of directory node n.
func (n *Node) removeChild(name string) {
	if _, ok := n.children[name]; !ok {
		return
	}
	delete(n.children, name)
	for i, v := range n.childOrder {
		if v == name {
			n.childOrder = append(n.childOrder[:i], n.childOrder[i+1:]...)
			break
		}
	}
}

// hasReplica reports whether d is already present in the file node's
// replica set. Callers must hold bookMu.
func (n *Node) hasReplica(d Descriptor) bool {
	for _, r := range n.Replicas {
		if r.Equals(d) {
			return true
		}
	}
	return false
}

// removeReplica deletes d from the replica set, snapshotting first since
// replica-set mutation must never happen while a caller is mid-iteration
// over the same slice (spec design note). Callers must hold bookMu.
func (n *Node) removeReplica(d Descriptor) {
	snapshot := make([]Descriptor, len(n.Replicas))
	copy(snapshot, n.Replicas)

	kept := snapshot[:0]
	for _, r := range snapshot {
		if !r.Equals(d) {
			kept = append(kept, r)
		}
	}
	n.Replicas = kept
}

// Bump increments the file node's request counter on the read-lock path.
// At each multiple of ReplicaGranularity it refreshes the coarse counter
// and reports the new value so the caller can evaluate the replication
// policy; otherwise refreshed is false and coarse is unspecified.
func (n *Node) Bump() (refreshed bool, coarse uint64) {
	n.bookMu.Lock()
	defer n.bookMu.Unlock()

	n.RequestCount++
	if n.RequestCount%ReplicaGranularity == 0 {
		n.CoarseCount = n.RequestCount
		return true, n.CoarseCount
	}
	return false, 0
}

// ReplicaSnapshot returns a copy of the file node's current replica set.
func (n *Node) ReplicaSnapshot() []Descriptor {
	n.bookMu.Lock()
	defer n.bookMu.Unlock()

	out := make([]Descriptor, len(n.Replicas))
	copy(out, n.Replicas)
	return out
}

// AddReplica appends d to the replica set if it isn't already present.
func (n *Node) AddReplica(d Descriptor) {
	n.bookMu.Lock()
	defer n.bookMu.Unlock()

	if !n.hasReplica(d) {
		n.Replicas = append(n.Replicas, d)
	}
}

// SetPrimary records d as the most-recently-selected replica, for the
// invalidation policy to later single out on an exclusive unlock.
func (n *Node) SetPrimary(d Descriptor) {
	n.bookMu.Lock()
	defer n.bookMu.Unlock()

	cp := d
	n.Primary = &cp
}

// InvalidateExceptPrimary collapses the replica set down to the primary
// replica (the replica most recently handed out by getStorage) and
// returns every other descriptor that was dropped, for the caller to
// issue Command.delete calls against. If no primary was ever recorded
// (no getStorage call happened before this write), the first replica in
// the set is kept instead.
func (n *Node) InvalidateExceptPrimary() []Descriptor {
	n.bookMu.Lock()
	defer n.bookMu.Unlock()

	if len(n.Replicas) == 0 {
		return nil
	}

	keep := n.Replicas[0]
	if n.Primary != nil {
		keep = *n.Primary
	}

	var dropped []Descriptor
	for _, r := range n.Replicas {
		if !r.Equals(keep) {
			dropped = append(dropped, r)
		}
	}
	n.Replicas = []Descriptor{keep}
	return dropped
}
