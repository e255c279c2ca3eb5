package naming

import (
	"sync"

	"github.com/sandia-minimega/dfs/internal/tree"
)

// registry is the naming server's ordered list of registered storage-server
// descriptors (spec §3: "stored in an ordered registry inside the naming
// server"). Descriptors are appended on register and never removed -- this
// core does no storage-server health tracking.
type registry struct {
	mu          sync.Mutex
	descriptors []tree.Descriptor
}

func newRegistry() *registry {
	return &registry{}
}

// contains reports whether d is already registered.
func (r *registry) contains(d tree.Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.descriptors {
		if existing.Equals(d) {
			return true
		}
	}
	return false
}

// add appends d to the registry. Callers must already have checked
// contains(d) is false.
func (r *registry) add(d tree.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.descriptors = append(r.descriptors, d)
}

// all returns a snapshot of the registry in registration order.
func (r *registry) all() []tree.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]tree.Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// pickAny returns an arbitrary registered descriptor, used by createFile
// (spec §4.4: "pick any registered storage server"). ok is false if the
// registry is empty.
func (r *registry) pickAny() (tree.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.descriptors) == 0 {
		return tree.Descriptor{}, false
	}
	return r.descriptors[0], true
}

// fresh returns up to n descriptors from the registry, in registry order,
// that are not already present in exclude. Used by the replication
// trigger to pick storage servers to copy a file to.
func (r *registry) fresh(exclude []tree.Descriptor, n int) []tree.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []tree.Descriptor
	for _, d := range r.descriptors {
		if len(out) >= n {
			break
		}
		already := false
		for _, e := range exclude {
			if e.Equals(d) {
				already = true
				break
			}
		}
		if !already {
			out = append(out, d)
		}
	}
	return out
}
