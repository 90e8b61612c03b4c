// Package loader provides ELF binary loading for 32-bit ARM routines.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/armemu/emu"
)

// ErrSymbolNotFound is returned when a routine name is not in the symbol
// table.
var ErrSymbolNotFound = errors.New("symbol not found")

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF file: its segments and the addresses of
// its named routines.
type Program struct {
	// EntryPoint is the ELF entry address. Routines are usually called by
	// symbol instead.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// Symbols maps function and object names to addresses.
	Symbols map[string]uint32
}

// Load parses a little-endian 32-bit ARM ELF file.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		Symbols:    make(map[string]uint32),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	for _, sym := range syms {
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_NOTYPE:
		default:
			continue
		}
		if sym.Name == "" || sym.Section == elf.SHN_UNDEF {
			continue
		}
		prog.Symbols[sym.Name] = uint32(sym.Value)
	}

	return prog, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: uint32(phdr.Vaddr),
		Data:     data,
		MemSize:  uint32(phdr.Memsz),
		Flags:    flags,
	}, nil
}

// Symbol returns the address of a named routine.
func (p *Program) Symbol(name string) (uint32, error) {
	addr, ok := p.Symbols[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrSymbolNotFound, name)
	}
	return addr, nil
}

// SymbolNames returns the symbol names in address order.
func (p *Program) SymbolNames() []string {
	names := make([]string, 0, len(p.Symbols))
	for name := range p.Symbols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ai, aj := p.Symbols[names[i]], p.Symbols[names[j]]
		if ai != aj {
			return ai < aj
		}
		return names[i] < names[j]
	})
	return names
}

// LoadInto maps every non-empty segment into mem. The BSS tail of a
// segment is zero-filled.
func (p *Program) LoadInto(mem *emu.Memory) error {
	for i, seg := range p.Segments {
		size := max(int(seg.MemSize), len(seg.Data))
		if size == 0 {
			continue
		}

		buf := make([]byte, size)
		copy(buf, seg.Data)

		if _, err := mem.Map(fmt.Sprintf("segment%d", i), seg.VirtAddr, buf); err != nil {
			return fmt.Errorf("failed to load segment at 0x%x: %w", seg.VirtAddr, err)
		}
	}
	return nil
}
