package emu

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Default layout of the emulated address space. Map refuses regions that
// contain address 0 so that the call-return sentinel cannot alias a valid
// instruction.
const (
	// CodeBase is where programs are loaded by default.
	CodeBase uint32 = 0x00008000

	// DataBase is where caller-supplied buffers are placed by default.
	DataBase uint32 = 0x00100000

	// StackBase is the lowest address of the emulated stack.
	StackBase uint32 = 0x00F00000

	// StackSize is the size of the emulated stack in bytes.
	StackSize = 1024

	// StackTop is one past the highest stack address; SP starts here and
	// the stack grows down.
	StackTop = StackBase + StackSize
)

// Region is a contiguous, byte-addressable block of emulated memory.
type Region struct {
	Name string
	Base uint32
	Data []byte
}

// End returns one past the last address of the region.
func (r *Region) End() uint64 {
	return uint64(r.Base) + uint64(len(r.Data))
}

func (r *Region) contains(addr uint32, size int) bool {
	return addr >= r.Base && uint64(addr)+uint64(size) <= r.End()
}

// Memory is the emulated address space: a set of non-overlapping regions
// with bounds-checked little-endian access. Nothing outside a region is
// readable or writable.
type Memory struct {
	regions []*Region
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{}
}

// Map adds a region backed by data at base. The slice is used in place,
// so writes by the emulated program are visible to the caller. Names are
// unique and no region may contain address 0.
func (m *Memory) Map(name string, base uint32, data []byte) (*Region, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("map %s: empty region", name)
	}
	if base == 0 {
		return nil, fmt.Errorf("map %s: address 0 is reserved for the return sentinel", name)
	}
	if m.Region(name) != nil {
		return nil, fmt.Errorf("map %s: region name already in use", name)
	}

	region := &Region{Name: name, Base: base, Data: data}
	if region.End() > 1<<32 {
		return nil, fmt.Errorf("map %s: region at 0x%08X exceeds the address space", name, base)
	}

	for _, r := range m.regions {
		if uint64(base) < r.End() && region.End() > uint64(r.Base) {
			return nil, fmt.Errorf("map %s: overlaps region %s at 0x%08X", name, r.Name, r.Base)
		}
	}

	m.regions = append(m.regions, region)
	sort.Slice(m.regions, func(i, j int) bool {
		return m.regions[i].Base < m.regions[j].Base
	})

	return region, nil
}

// Unmap removes the region with the given name. It reports whether a
// region was removed.
func (m *Memory) Unmap(name string) bool {
	for i, r := range m.regions {
		if r.Name == name {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return true
		}
	}
	return false
}

// Region returns the region with the given name, or nil.
func (m *Memory) Region(name string) *Region {
	for _, r := range m.regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Regions returns the mapped regions ordered by base address.
func (m *Memory) Regions() []*Region {
	return m.regions
}

// LoadProgram maps program bytes at entry as a region named "code".
func (m *Memory) LoadProgram(entry uint32, program []byte) error {
	buf := make([]byte, len(program))
	copy(buf, program)
	_, err := m.Map("code", entry, buf)
	return err
}

// slice returns the bytes backing [addr, addr+size).
func (m *Memory) slice(addr uint32, size int) ([]byte, error) {
	for _, r := range m.regions {
		if r.contains(addr, size) {
			off := addr - r.Base
			return r.Data[off : off+uint32(size)], nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes at 0x%08X", ErrOutOfBounds, size, addr)
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	b, err := m.slice(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	b, err := m.slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) error {
	b, err := m.slice(addr, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) error {
	b, err := m.slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}
