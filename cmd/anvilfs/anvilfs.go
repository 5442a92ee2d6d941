/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar 15 10:11:37 2019 mstenber
 * Last modified: Thu Apr  4 12:09:55 2019 mstenber
 * Edit time:     64 min
 *
 */

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/hanwen/go-fuse/fuse"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/bench"
	"github.com/fingon/go-anvilfs/fs"
	"github.com/fingon/go-anvilfs/gen"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/storage/factory"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n\n%s MOUNTDIR\n", os.Args[0])
		flag.PrintDefaults()
	}
	backendp := flag.String("storage", "discard",
		fmt.Sprintf("Storage backend to use (possible: %v)", factory.List()))
	dir := flag.String("dir", "", "Data directory / database file for file-based backends")
	conn := flag.String("conn", "", "Postgres connection string for pg-* backends")
	password := flag.String("password", "", "Password enabling value encryption on KV backends")
	salt := flag.String("salt", "", "Salt for the encryption key derivation")
	cachesize := flag.Int("cachesize", 0, "Chunk cache capacity in entries (0 = default)")
	prefetch := flag.Int("prefetch", 0, "Prefetch radius in chunks around each miss (0 = off)")
	workers := flag.Int("prefetchworkers", 0, "Concurrent background warm-ups (0 = default)")
	seed := flag.Int64("seed", 0, "World seed fed to the generator")
	schemep := flag.String("scheme", "zlib", "Compression scheme for generated chunks (none/gzip/zlib/lz4)")
	cpuprofile := flag.String("cpuprofile", "", "CPU profile file")
	memprofile := flag.String("memprofile", "", "Memory profile file")
	profile := flag.Bool("profile", false, "Whether to enable profiling 'bonus stuff'")

	flag.Parse()

	if *profile {
		runtime.SetBlockProfileRate(1000)    // microsecond
		runtime.SetMutexProfileFraction(100) // 1/100 is enough
	}
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	mountpoint := flag.Arg(0)

	scheme, err := anvil.ParseScheme(*schemep)
	if err != nil {
		log.Fatal(err)
	}
	backend, err := factory.New(*backendp, factory.Config{
		Directory: *dir,
		Conn:      *conn,
		Password:  *password,
		Salt:      *salt,
	})
	if err != nil {
		log.Fatal(err)
	}

	metrics := bench.New()
	myfs := fs.NewFs(backend, gen.FlatGenerator{}, metrics,
		fs.Config{
			CacheSize:       *cachesize,
			PrefetchRadius:  *prefetch,
			PrefetchWorkers: *workers,
			Seed:            *seed,
			Scheme:          scheme,
		})
	opts := &fuse.MountOptions{AllowOther: true, FsName: "anvilfs", Name: "anvilfs"}
	if mlog.IsEnabled() {
		opts.Debug = true
	}

	fuseServer, err := fuse.NewServer(&myfs.Ops, mountpoint, opts)
	if err != nil {
		log.Panic(err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		fuseServer.Unmount()
	}()

	// loop is here
	fuseServer.Serve()

	myfs.Close()
	log.Printf("%s", metrics.Report())

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
