package storage

import (
	proc "github.com/c9s/goprocinfo/linux"

	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// logHostStats logs a snapshot of host memory and load at startup, the
// same "read /proc, log it" idiom the corpus uses to characterize a
// daemon's environment on boot. Unlike the per-process CPU accounting it
// is grounded on, a storage server has no child-process tree to walk, so
// this reads host-wide /proc/meminfo and /proc/loadavg instead of
// /proc/<pid>/stat and does not need the cgo clock-ticks/page-size
// lookups that per-process accounting requires.
func logHostStats() {
	if mem, err := proc.ReadMemInfo("/proc/meminfo"); err != nil {
		log.Debug("reading /proc/meminfo: %v", err)
	} else {
		log.Info("host memory: %v kB total, %v kB free, %v kB available", mem.MemTotal, mem.MemFree, mem.MemAvailable)
	}

	if load, err := proc.ReadLoadAvg("/proc/loadavg"); err != nil {
		log.Debug("reading /proc/loadavg: %v", err)
	} else {
		log.Info("host load: %.2f %.2f %.2f", load.Last1Min, load.Last5Min, load.Last15Min)
	}
}
