package loader_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armemu/emu"
	"github.com/sarchlab/armemu/insts"
	"github.com/sarchlab/armemu/loader"
)

const (
	machineARM = 40
	machine386 = 3

	pfX = 0x1
	pfW = 0x2
	pfR = 0x4
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	writeELF := func(name string, data []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		return path
	}

	code := insts.BuildProgram(
		insts.EncodeADDReg(0, 0, 1), // add_two: add r0, r0, r1
		insts.EncodeBX(emu.LR),
		insts.EncodeMOVImm(0, 42), // answer: mov r0, #42
		insts.EncodeBX(emu.LR),
	)

	Describe("Load", func() {
		Context("with a valid ARM ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = writeELF("test.elf", buildELF32(machineARM, 0x8000,
					[]testSegment{{addr: 0x8000, data: code, memSize: uint32(len(code)), flags: pfR | pfX}},
					[]testSymbol{{name: "add_two", value: 0x8000}, {name: "answer", value: 0x8008}},
				))
			})

			It("should extract the correct entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x8000)))
			})

			It("should correctly load segment contents", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint32(0x8000)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.MemSize).To(Equal(uint32(len(code))))
				Expect(seg.Flags).To(Equal(loader.SegmentFlagRead | loader.SegmentFlagExecute))
			})

			It("should look up symbols", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				Expect(prog.Symbol("answer")).To(Equal(uint32(0x8008)))
				Expect(prog.SymbolNames()).To(Equal([]string{"add_two", "answer"}))

				_, err = prog.Symbol("missing")
				Expect(err).To(MatchError(loader.ErrSymbolNotFound))
			})

			It("should run a routine found by name", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				e := emu.NewEmulator()
				Expect(prog.LoadInto(e.Memory())).To(Succeed())

				entry, err := prog.Symbol("add_two")
				Expect(err).NotTo(HaveOccurred())
				result, err := e.Call(context.Background(), entry, 40, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal(uint32(42)))
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				path := writeELF("not-elf.bin", []byte("not an elf file"))
				_, err := loader.Load(path)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for empty file", func() {
				path := writeELF("empty.elf", []byte{})
				_, err := loader.Load(path)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a non-ARM ELF", func() {
			It("should return error for an x86 ELF", func() {
				path := writeELF("x86.elf", buildELF32(machine386, 0, nil, nil))
				_, err := loader.Load(path)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not an ARM"))
			})
		})

		Context("with a 64-bit ELF", func() {
			It("should return error for 64-bit ELF", func() {
				path := writeELF("elf64.elf", buildMinimalELF64())
				_, err := loader.Load(path)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a 32-bit"))
			})
		})
	})

	Describe("Multi-segment ELFs", func() {
		It("should load code and data segments", func() {
			data := []byte{1, 2, 3, 4}
			path := writeELF("multi.elf", buildELF32(machineARM, 0x8000, []testSegment{
				{addr: 0x8000, data: code, memSize: uint32(len(code)), flags: pfR | pfX},
				{addr: emu.DataBase, data: data, memSize: 4, flags: pfR | pfW},
			}, nil))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[1].Flags).To(Equal(loader.SegmentFlagRead | loader.SegmentFlagWrite))

			mem := emu.NewMemory()
			Expect(prog.LoadInto(mem)).To(Succeed())
			Expect(mem.Read32(emu.DataBase)).To(Equal(uint32(0x04030201)))
		})

		It("should fail to load overlapping segments", func() {
			path := writeELF("overlap.elf", buildELF32(machineARM, 0x8000, []testSegment{
				{addr: 0x8000, data: code, memSize: uint32(len(code)), flags: pfR | pfX},
				{addr: 0x8004, data: []byte{0, 0, 0, 0}, memSize: 4, flags: pfR},
			}, nil))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.LoadInto(emu.NewMemory())).NotTo(Succeed())
		})

		It("should refuse a segment at address 0", func() {
			path := writeELF("zero.elf", buildELF32(machineARM, 0, []testSegment{
				{addr: 0, data: code, memSize: uint32(len(code)), flags: pfR | pfX},
			}, nil))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.LoadInto(emu.NewMemory())).To(MatchError(ContainSubstring("address 0")))
		})
	})

	Describe("BSS segments", func() {
		It("should zero-fill memory past the file contents", func() {
			path := writeELF("bss.elf", buildELF32(machineARM, 0, []testSegment{
				{addr: emu.DataBase, data: []byte{0xFF, 0xFF, 0xFF, 0xFF}, memSize: 16, flags: pfR | pfW},
			}, nil))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments[0].Data).To(HaveLen(4))
			Expect(prog.Segments[0].MemSize).To(Equal(uint32(16)))

			mem := emu.NewMemory()
			Expect(prog.LoadInto(mem)).To(Succeed())
			Expect(mem.Read32(emu.DataBase)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(mem.Read32(emu.DataBase + 12)).To(Equal(uint32(0)))
		})

		It("should handle segments with zero file size", func() {
			path := writeELF("zero.elf", buildELF32(machineARM, 0, []testSegment{
				{addr: emu.DataBase, memSize: 8, flags: pfR | pfW},
			}, nil))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments[0].Data).To(BeEmpty())

			mem := emu.NewMemory()
			Expect(prog.LoadInto(mem)).To(Succeed())
			Expect(mem.Region("segment0").Data).To(HaveLen(8))
		})
	})

	Describe("Symbol filtering", func() {
		It("should skip section symbols and keep objects", func() {
			path := writeELF("syms.elf", buildELF32(machineARM, 0x8000,
				[]testSegment{{addr: 0x8000, data: code, memSize: uint32(len(code)), flags: pfR | pfX}},
				[]testSymbol{
					{name: "add_two", value: 0x8000},
					{name: ".text", value: 0x8000, info: 0x03}, // STB_LOCAL, STT_SECTION
					{name: "table", value: emu.DataBase, info: 0x11}, // STB_GLOBAL, STT_OBJECT
				},
			))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Symbols).To(Equal(map[string]uint32{
				"add_two": 0x8000,
				"table":   emu.DataBase,
			}))
		})

		It("should return an empty table for a stripped file", func() {
			path := writeELF("stripped.elf", buildELF32(machineARM, 0x8000,
				[]testSegment{{addr: 0x8000, data: code, memSize: uint32(len(code)), flags: pfR | pfX}},
				nil,
			))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Symbols).To(BeEmpty())
		})
	})

	Describe("ELFs with no loadable segments", func() {
		It("should return empty segments list", func() {
			path := writeELF("noload.elf", buildELF32(machineARM, 0x8000, nil, nil))

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
			Expect(prog.LoadInto(emu.NewMemory())).To(Succeed())
		})
	})
})

type testSegment struct {
	addr    uint32
	data    []byte
	memSize uint32
	flags   uint32
}

type testSymbol struct {
	name  string
	value uint32
	info  byte // defaults to STB_GLOBAL, STT_FUNC
}

// buildELF32 builds a little-endian ELF32 executable with one PT_LOAD per
// segment and, when symbols are given, .symtab/.strtab sections.
func buildELF32(machine uint16, entry uint32, segs []testSegment, syms []testSymbol) []byte {
	const (
		ehsize    = 52
		phentsize = 32
		shentsize = 40
		symsize   = 16
		shnABS    = 0xFFF1
	)
	le := binary.LittleEndian

	header := make([]byte, ehsize)
	phdrs := make([]byte, len(segs)*phentsize)
	var body []byte

	off := uint32(ehsize + len(phdrs))
	for i, s := range segs {
		p := phdrs[i*phentsize:]
		le.PutUint32(p[0:4], 1) // PT_LOAD
		le.PutUint32(p[4:8], off+uint32(len(body)))
		le.PutUint32(p[8:12], s.addr)
		le.PutUint32(p[12:16], s.addr)
		le.PutUint32(p[16:20], uint32(len(s.data)))
		le.PutUint32(p[20:24], s.memSize)
		le.PutUint32(p[24:28], s.flags)
		le.PutUint32(p[28:32], 4)
		body = append(body, s.data...)
	}

	var shdrs []byte
	if len(syms) > 0 {
		strtab := []byte{0}
		symtab := make([]byte, symsize) // index 0 is the null symbol
		for _, sym := range syms {
			entry := make([]byte, symsize)
			le.PutUint32(entry[0:4], uint32(len(strtab)))
			le.PutUint32(entry[4:8], sym.value)
			info := sym.info
			if info == 0 {
				info = 0x12
			}
			entry[12] = info
			le.PutUint16(entry[14:16], shnABS)
			symtab = append(symtab, entry...)
			strtab = append(strtab, append([]byte(sym.name), 0)...)
		}
		shstrtab := []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")

		symtabOff := off + uint32(len(body))
		body = append(body, symtab...)
		strtabOff := off + uint32(len(body))
		body = append(body, strtab...)
		shstrtabOff := off + uint32(len(body))
		body = append(body, shstrtab...)

		shdr := func(name, typ, offset, size, link, info, entsize uint32) []byte {
			s := make([]byte, shentsize)
			le.PutUint32(s[0:4], name)
			le.PutUint32(s[4:8], typ)
			le.PutUint32(s[16:20], offset)
			le.PutUint32(s[20:24], size)
			le.PutUint32(s[24:28], link)
			le.PutUint32(s[28:32], info)
			le.PutUint32(s[32:36], 1)
			le.PutUint32(s[36:40], entsize)
			return s
		}
		shdrs = append(shdrs, make([]byte, shentsize)...)
		shdrs = append(shdrs, shdr(1, 2, symtabOff, uint32(len(symtab)), 2, 1, symsize)...)
		shdrs = append(shdrs, shdr(9, 3, strtabOff, uint32(len(strtab)), 0, 0, 0)...)
		shdrs = append(shdrs, shdr(17, 3, shstrtabOff, uint32(len(shstrtab)), 0, 0, 0)...)
	}

	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1 // 32-bit
	header[5] = 1 // little endian
	header[6] = 1 // version
	le.PutUint16(header[16:18], 2) // executable
	le.PutUint16(header[18:20], machine)
	le.PutUint32(header[20:24], 1)
	le.PutUint32(header[24:28], entry)
	if len(segs) > 0 {
		le.PutUint32(header[28:32], ehsize)
	}
	le.PutUint16(header[40:42], ehsize)
	le.PutUint16(header[42:44], phentsize)
	le.PutUint16(header[44:46], uint16(len(segs)))
	le.PutUint16(header[46:48], shentsize)
	if len(shdrs) > 0 {
		le.PutUint32(header[32:36], off+uint32(len(body)))
		le.PutUint16(header[48:50], 4)
		le.PutUint16(header[50:52], 3)
	}

	out := append(header, phdrs...)
	out = append(out, body...)
	return append(out, shdrs...)
}

// buildMinimalELF64 builds a 64-bit AArch64 header to test rejection.
func buildMinimalELF64() []byte {
	header := make([]byte, 64)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2                                     // 64-bit
	header[5] = 1                                     // little endian
	header[6] = 1                                     // version
	binary.LittleEndian.PutUint16(header[16:18], 2)   // executable
	binary.LittleEndian.PutUint16(header[18:20], 183) // AArch64
	binary.LittleEndian.PutUint32(header[20:24], 1)   // version
	binary.LittleEndian.PutUint16(header[52:54], 64)  // ehsize
	binary.LittleEndian.PutUint16(header[54:56], 56)  // phentsize
	return header
}
