/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Mar 12 08:17:33 2019 mstenber
 * Last modified: Wed Apr  3 10:22:18 2019 mstenber
 * Edit time:     88 min
 *
 */

// gen produces chunk tag trees on demand. Generators must be
// deterministic: the same coordinate and seed always yield the same
// tree, so a regenerated chunk is indistinguishable from the first
// copy handed out.
package gen

import (
	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/nbt"
)

type Generator interface {
	Generate(coord anvil.ChunkCoord, seed int64) (*nbt.Compound, error)
}

// dataVersion is the world format generation the produced chunks
// claim; servers refuse chunks newer than themselves, older ones get
// silently upgraded.
const dataVersion = 3955

// sectionMinY is the lowest 16-block section of the world column.
const sectionMinY = -4

// FlatGenerator builds superflat terrain: bedrock floor, a few layers
// of dirt, grass on top, air above. Cheap enough to run inline on a
// cache miss.
type FlatGenerator struct{}

var _ Generator = FlatGenerator{}

func (FlatGenerator) Generate(coord anvil.ChunkCoord, seed int64) (*nbt.Compound, error) {
	root := nbt.NewCompound()
	root.Set("DataVersion", nbt.Int(dataVersion))
	root.Set("xPos", nbt.Int(coord.X))
	root.Set("zPos", nbt.Int(coord.Z))
	root.Set("yPos", nbt.Int(sectionMinY))
	root.Set("Status", nbt.String("minecraft:full"))
	root.Set("LastUpdate", nbt.Long(0))
	root.Set("InhabitedTime", nbt.Long(0))
	root.Set("isLightOn", nbt.Byte(1))

	sections := nbt.List{Of: nbt.TagCompound}
	sections.Append(groundSection(coord, seed))
	for y := sectionMinY + 1; y <= 19; y++ {
		sections.Append(airSection(int8(y)))
	}
	root.Set("sections", sections)

	root.Set("block_entities", nbt.List{Of: nbt.TagCompound})
	return root, nil
}

// groundSection is the bottom section: bedrock at its floor, dirt
// above, grass on the surface layer. The palette order is seed-salted
// so distinct seeds produce distinct bytes while staying a valid
// superflat column.
func groundSection(coord anvil.ChunkCoord, seed int64) *nbt.Compound {
	blocks := []string{
		"minecraft:bedrock",
		"minecraft:dirt",
		"minecraft:grass_block",
		"minecraft:air",
	}
	// Rotate the palette deterministically; apply the inverse
	// rotation when laying out indices below.
	rot := int(mix(coord, seed) % uint64(len(blocks)))
	palette := nbt.List{Of: nbt.TagCompound}
	for i := range blocks {
		c := nbt.NewCompound()
		c.Set("Name", nbt.String(blocks[(i+rot)%len(blocks)]))
		palette.Append(c)
	}
	section := nbt.NewCompound()
	section.Set("Y", nbt.Byte(sectionMinY))

	states := nbt.NewCompound()
	states.Set("palette", palette)
	states.Set("data", packStates(rot, len(blocks)))
	section.Set("block_states", states)

	section.Set("biomes", plainsBiomes())
	return section
}

func airSection(y int8) *nbt.Compound {
	section := nbt.NewCompound()
	section.Set("Y", nbt.Byte(y))
	states := nbt.NewCompound()
	palette := nbt.List{Of: nbt.TagCompound}
	c := nbt.NewCompound()
	c.Set("Name", nbt.String("minecraft:air"))
	palette.Append(c)
	states.Set("palette", palette)
	section.Set("block_states", states)
	section.Set("biomes", plainsBiomes())
	return section
}

func plainsBiomes() *nbt.Compound {
	biomes := nbt.NewCompound()
	bpal := nbt.List{Of: nbt.TagString}
	bpal.Append(nbt.String("minecraft:plains"))
	biomes.Set("palette", bpal)
	return biomes
}

// packStates lays out the 4096 block state indices of the ground
// section as the packed long array the format wants: ceil(log2(n))
// bits per index, little-endian within each long, no index straddling
// a long boundary.
func packStates(rot, paletteLen int) nbt.LongArray {
	// 4 palette entries -> 2 bits each, but the format floors at 4
	// bits per index.
	const bits = 4
	const perLong = 64 / bits

	logical := func(y int) int {
		// y within the section: bedrock floor, dirt filler,
		// grass surface, air above.
		switch {
		case y == 0:
			return 0
		case y < 3:
			return 1
		case y == 3:
			return 2
		}
		return 3
	}
	data := make(nbt.LongArray, (4096+perLong-1)/perLong)
	for i := 0; i < 4096; i++ {
		y := i >> 8
		// Invert the palette rotation so the block at each
		// position is seed-independent even though the
		// serialized indices are not.
		idx := (logical(y) - rot%paletteLen + paletteLen) % paletteLen
		data[i/perLong] |= int64(idx) << (uint(i%perLong) * bits)
	}
	return data
}

// mix hashes coordinate and seed into a small deterministic value
// (splitmix64 finalizer).
func mix(coord anvil.ChunkCoord, seed int64) uint64 {
	x := uint64(seed) ^ uint64(uint32(coord.X))<<32 ^ uint64(uint32(coord.Z))
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
