/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Mar  7 11:30:26 2019 mstenber
 * Last modified: Mon Mar 25 15:12:38 2019 mstenber
 * Edit time:     74 min
 *
 */

// bench package is the fire-and-forget metrics sink for the data
// path: discrete events only, never blocking, never altering control
// flow. A nil *Metrics is valid and records nothing, so callers do
// not branch on its presence.
package bench

import (
	"fmt"
	"sync/atomic"
	"time"
)

type Metrics struct {
	cacheHits   int64
	cacheMisses int64

	generated    int64
	generationUs int64

	loads  int64
	loadUs int64
	saves  int64
	saveUs int64

	readRequests int64
	readBytes    int64
	writtenBytes int64

	rawBytes        int64
	compressedBytes int64

	start time.Time
}

func New() *Metrics {
	return &Metrics{start: time.Now()}
}

func (self *Metrics) RecordCacheHit() {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.cacheHits, 1)
}

func (self *Metrics) RecordCacheMiss() {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.cacheMisses, 1)
}

func (self *Metrics) RecordGeneration(d time.Duration) {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.generated, 1)
	atomic.AddInt64(&self.generationUs, int64(d/time.Microsecond))
}

func (self *Metrics) RecordLoad(d time.Duration) {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.loads, 1)
	atomic.AddInt64(&self.loadUs, int64(d/time.Microsecond))
}

func (self *Metrics) RecordSave(d time.Duration) {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.saves, 1)
	atomic.AddInt64(&self.saveUs, int64(d/time.Microsecond))
}

func (self *Metrics) RecordRead(n int) {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.readRequests, 1)
	atomic.AddInt64(&self.readBytes, int64(n))
}

func (self *Metrics) RecordWrite(n int) {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.writtenBytes, int64(n))
}

func (self *Metrics) RecordCompression(rawLen, compressedLen int) {
	if self == nil {
		return
	}
	atomic.AddInt64(&self.rawBytes, int64(rawLen))
	atomic.AddInt64(&self.compressedBytes, int64(compressedLen))
}

// Report renders a human-readable summary of everything recorded so
// far.
func (self *Metrics) Report() string {
	if self == nil {
		return "bench: disabled"
	}
	hits := atomic.LoadInt64(&self.cacheHits)
	misses := atomic.LoadInt64(&self.cacheMisses)
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	gen := atomic.LoadInt64(&self.generated)
	genAvg := int64(0)
	if gen > 0 {
		genAvg = atomic.LoadInt64(&self.generationUs) / gen
	}
	raw := atomic.LoadInt64(&self.rawBytes)
	comp := atomic.LoadInt64(&self.compressedBytes)
	ratio := 0.0
	if comp > 0 {
		ratio = float64(raw) / float64(comp)
	}
	return fmt.Sprintf(
		"bench: uptime %v, cache %d/%d hits (%.1f%%), generated %d (avg %dus), loads %d, saves %d, reads %d (%d bytes), writes %d bytes, compression %.2fx",
		time.Since(self.start).Round(time.Second),
		hits, total, hitRate,
		gen, genAvg,
		atomic.LoadInt64(&self.loads),
		atomic.LoadInt64(&self.saves),
		atomic.LoadInt64(&self.readRequests),
		atomic.LoadInt64(&self.readBytes),
		atomic.LoadInt64(&self.writtenBytes),
		ratio)
}
