/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  2 10:12:41 2019 mstenber
 * Last modified: Sun Mar 10 11:02:17 2019 mstenber
 * Edit time:     14 min
 *
 */

package util

import "sync"

// MutexLocked is a mutex with convenience API; the scoped form
// 'defer x.Locked()()' makes forgotten unlocks stick out visually.
type MutexLocked sync.Mutex

func (self *MutexLocked) Locked() func() {
	m := (*sync.Mutex)(self)
	m.Lock()
	return m.Unlock
}

// RWMutexLocked is the same convenience wrapper for RWMutex.
type RWMutexLocked sync.RWMutex

func (self *RWMutexLocked) Locked() func() {
	m := (*sync.RWMutex)(self)
	m.Lock()
	return m.Unlock
}

func (self *RWMutexLocked) RLocked() func() {
	m := (*sync.RWMutex)(self)
	m.RLock()
	return m.RUnlock
}
