/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Mar  5 15:28:44 2019 mstenber
 * Last modified: Tue Mar  5 16:01:19 2019 mstenber
 * Edit time:     22 min
 *
 */

package nbt

import "github.com/pkg/errors"

// ChunkPos extracts the authoritative chunk coordinates embedded in a
// chunk document: xPos/zPos at the root (modern layout), or inside the
// legacy "Level" compound. The offset a write arrives at is only a
// hint; these fields decide where the chunk actually belongs.
func ChunkPos(root *Compound) (x, z int32, err error) {
	if root == nil {
		return 0, 0, errors.Wrap(ErrMalformed, "nil chunk root")
	}
	if xv, ok := root.GetInt("xPos"); ok {
		zv, ok := root.GetInt("zPos")
		if !ok {
			return 0, 0, errors.Wrap(ErrMalformed, "xPos without zPos")
		}
		return int32(xv), int32(zv), nil
	}
	if level := root.GetCompound("Level"); level != nil {
		xv, okx := level.GetInt("xPos")
		zv, okz := level.GetInt("zPos")
		if okx && okz {
			return int32(xv), int32(zv), nil
		}
	}
	return 0, 0, errors.Wrap(ErrMalformed, "no xPos/zPos in chunk root or Level")
}
