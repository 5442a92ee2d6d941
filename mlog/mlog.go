/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  2 09:48:12 2019 mstenber
 * Last modified: Thu Mar 21 08:19:33 2019 mstenber
 * Edit time:     66 min
 *
 */

// mlog is maybe-log. It is a small wrapper of the standard 'log' with
// environment-variable-based and 'flag' options for choosing what to
// print; what is not printed does not cause overhead either (beyond
// one atomic load), as by default everything is off.
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
)

const envVar = "ANVILFS_MLOG"

var logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)

var enabled int32 // 0 = unknown, 1 = off, 2 = on

var mutex sync.Mutex

// Everything below is used only with mutex held
var flagPattern *string
var patternRegexp *regexp.Regexp
var fileMatch map[string]bool

func init() {
	flagPattern = flag.String("mlog", "",
		"Enable debug logging for files matching the regular expression")
	fileMatch = make(map[string]bool)
}

// IsEnabled can be used to check if mlog is in use at all before doing
// something expensive just to produce log arguments.
func IsEnabled() bool {
	switch atomic.LoadInt32(&enabled) {
	case 0:
		mutex.Lock()
		defer mutex.Unlock()
		initialize()
		return atomic.LoadInt32(&enabled) == 2
	case 2:
		return true
	}
	return false
}

// SetPattern overrides the environment/flag-provided pattern. The
// returned undo function restores the previous state.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := patternRegexp
	setPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		patternRegexp = old
		fileMatch = make(map[string]bool)
		if old == nil {
			atomic.StoreInt32(&enabled, 1)
		} else {
			atomic.StoreInt32(&enabled, 2)
		}
	}
}

func initialize() {
	if atomic.LoadInt32(&enabled) != 0 {
		return
	}
	p := os.Getenv(envVar)
	if flagPattern != nil && *flagPattern != "" {
		p = *flagPattern
	}
	setPattern(p)
}

func setPattern(p string) {
	patternRegexp = nil
	fileMatch = make(map[string]bool)
	if p == "" {
		atomic.StoreInt32(&enabled, 1)
		return
	}
	re, err := regexp.Compile(p)
	if err != nil {
		logger.Printf("mlog: invalid pattern %q: %v", p, err)
		atomic.StoreInt32(&enabled, 1)
		return
	}
	patternRegexp = re
	atomic.StoreInt32(&enabled, 2)
}

func fileEnabled(fname string) bool {
	mutex.Lock()
	defer mutex.Unlock()
	initialize()
	if patternRegexp == nil {
		return false
	}
	on, seen := fileMatch[fname]
	if !seen {
		on = patternRegexp.MatchString(fname)
		fileMatch[fname] = on
	}
	return on
}

// Printf2 logs the given format if fname (subjectively unique path of
// the calling file, e.g. "fs/vfile") matches the enabled pattern.
func Printf2(fname, format string, args ...interface{}) {
	if !IsEnabled() {
		return
	}
	if !fileEnabled(fname) {
		return
	}
	logger.Output(2, fname+" "+fmt.Sprintf(format, args...))
}
