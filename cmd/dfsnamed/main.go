// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// dfsnamed is the naming server binary: it serves the client-facing
// Service interface and the storage-server-facing Registration interface
// described in spec §4.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sandia-minimega/dfs/internal/naming"
	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

var (
	f_serviceAddr      = flag.String("service", ":"+strconv.Itoa(naming.ServicePort), "address to serve the client-facing naming service on")
	f_registrationAddr = flag.String("registration", ":"+strconv.Itoa(naming.RegistrationPort), "address to serve the storage-server registration service on")
	f_logRing          = flag.Int("logring", 512, "number of recent log lines to keep in memory, 0 to disable")
	f_version          = flag.Bool("version", false, "print the version and exit")
)

const banner = `dfsnamed, the distributed filesystem naming server.`

func usage() {
	fmt.Println(banner)
	fmt.Println("usage: dfsnamed [option]...")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log.Init()

	if *f_version {
		fmt.Println("dfsnamed", "0.1.0")
		os.Exit(0)
	}

	if *f_logRing > 0 {
		if level, err := log.ParseLevel(*log.LevelFlag); err == nil {
			log.AddLogRing("ring", log.NewRing(*f_logRing), level)
		}
	}

	fmt.Println(banner)

	s := naming.NewServer()
	if err := s.Start(*f_serviceAddr, *f_registrationAddr); err != nil {
		log.Fatal("starting naming server: %v", err)
	}

	log.Info("serving clients on %v, storage servers on %v", s.ServiceAddr(), s.RegistrationAddr())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	log.Warnln("caught signal, shutting down")
	if err := s.Stop(); err != nil {
		log.Errorln(err)
	}
}
