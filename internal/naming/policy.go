package naming

import (
	"github.com/sandia-minimega/dfs/internal/dpath"
	"github.com/sandia-minimega/dfs/internal/tree"
	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// Replication policy constants (spec §4.3).
const (
	alpha             = 0.2
	replicaUpperBound = 3
)

// applyReplicationTrigger runs the read-lock-path replication policy for
// a file node after a shared lock on it has been granted: bump the
// request counter, and if that crossed a tree.ReplicaGranularity
// boundary, copy the file to enough fresh storage servers to reach the
// desired replica count.
func (s *Server) applyReplicationTrigger(path dpath.Path, n *tree.Node) {
	refreshed, coarse := n.Bump()
	if !refreshed {
		return
	}

	desired := int(alpha * float64(coarse))
	if desired > replicaUpperBound {
		desired = replicaUpperBound
	}

	current := n.ReplicaSnapshot()
	need := desired - len(current)
	if need <= 0 || len(current) == 0 {
		return
	}

	candidates := s.reg.fresh(current, need)
	if len(candidates) == 0 {
		return
	}

	source := current[0].Storage // registration-time replica preferred
	for _, cand := range candidates {
		ok, err := cand.Command.Copy(path, source)
		if err != nil {
			log.Error("replicating %v to %v: %v", path, cand.Storage.Addr, err)
			continue
		}
		if !ok {
			continue
		}
		n.AddReplica(cand)
		log.Debug("replicated %v to %v (desired=%v, current=%v)", path, cand.Storage.Addr, desired, len(current)+1)
	}
}

// applyInvalidation runs the write-unlock-path invalidation policy for a
// file node: collapse the replica set down to the most-recently-selected
// replica, deleting every other replica via its Command stub.
func (s *Server) applyInvalidation(path dpath.Path, n *tree.Node) {
	dropped := n.InvalidateExceptPrimary()
	for _, d := range dropped {
		if _, err := d.Command.Delete(path); err != nil {
			log.Error("invalidating %v on %v: %v", path, d.Command.Addr, err)
		}
	}
}
