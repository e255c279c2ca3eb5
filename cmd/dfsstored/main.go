// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// dfsstored is the storage server binary: it serves the Storage and
// Command interfaces described in spec §4.2 out of a local root
// directory, and registers its inventory with a naming server at
// startup.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandia-minimega/dfs/internal/storage"
	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

var (
	f_root        = flag.String("root", "", "local directory to serve files from (required)")
	f_storageAddr = flag.String("storage", ":0", "address to serve the Storage interface on")
	f_commandAddr = flag.String("command", ":0", "address to serve the Command interface on")
	f_namingAddr  = flag.String("naming", "", "naming server registration address (required)")
	f_ftpAddr     = flag.String("ftp", "", "optional address to additionally serve the local root read-only over FTP")
	f_logRing     = flag.Int("logring", 512, "number of recent log lines to keep in memory, 0 to disable")
	f_version     = flag.Bool("version", false, "print the version and exit")
)

const banner = `dfsstored, a distributed filesystem storage server.`

func usage() {
	fmt.Println(banner)
	fmt.Println("usage: dfsstored -root <dir> -naming <addr> [option]...")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log.Init()

	if *f_version {
		fmt.Println("dfsstored", "0.1.0")
		os.Exit(0)
	}

	if *f_root == "" || *f_namingAddr == "" {
		usage()
		os.Exit(1)
	}

	if *f_logRing > 0 {
		if level, err := log.ParseLevel(*log.LevelFlag); err == nil {
			log.AddLogRing("ring", log.NewRing(*f_logRing), level)
		}
	}

	fmt.Println(banner)

	s, err := storage.NewServer(*f_root)
	if err != nil {
		log.Fatal("creating storage server: %v", err)
	}

	if err := s.Start(*f_storageAddr, *f_commandAddr, *f_namingAddr); err != nil {
		log.Fatal("starting storage server: %v", err)
	}

	log.Info("serving %v: storage on %v, command on %v", *f_root, s.StorageAddr(), s.CommandAddr())

	if *f_ftpAddr != "" {
		if err := s.StartFTP(*f_ftpAddr); err != nil {
			log.Fatal("starting ftp front-end: %v", err)
		}
		log.Info("serving %v read-only over ftp on %v", *f_root, *f_ftpAddr)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	log.Warnln("caught signal, shutting down")
	if err := s.Stop(); err != nil {
		log.Errorln(err)
	}
}
