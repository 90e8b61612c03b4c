package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armemu/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	Describe("Map", func() {
		It("should keep regions ordered by base", func() {
			_, err := memory.Map("high", 0x2000, make([]byte, 16))
			Expect(err).NotTo(HaveOccurred())
			_, err = memory.Map("low", 0x1000, make([]byte, 16))
			Expect(err).NotTo(HaveOccurred())

			regions := memory.Regions()
			Expect(regions).To(HaveLen(2))
			Expect(regions[0].Name).To(Equal("low"))
			Expect(regions[1].Name).To(Equal("high"))
		})

		It("should reject overlapping regions", func() {
			_, err := memory.Map("a", 0x1000, make([]byte, 16))
			Expect(err).NotTo(HaveOccurred())

			_, err = memory.Map("b", 0x100C, make([]byte, 16))
			Expect(err).To(MatchError(ContainSubstring("overlaps region a")))
		})

		It("should allow adjacent regions", func() {
			_, err := memory.Map("a", 0x1000, make([]byte, 16))
			Expect(err).NotTo(HaveOccurred())
			_, err = memory.Map("b", 0x1010, make([]byte, 16))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject empty regions and regions past 4GB", func() {
			_, err := memory.Map("empty", 0x1000, nil)
			Expect(err).To(HaveOccurred())

			_, err = memory.Map("wrap", 0xFFFFFFFC, make([]byte, 8))
			Expect(err).To(HaveOccurred())
		})

		It("should reject a name that is already mapped", func() {
			_, err := memory.Map("data", 0x1000, make([]byte, 16))
			Expect(err).NotTo(HaveOccurred())

			_, err = memory.Map("data", 0x2000, make([]byte, 16))
			Expect(err).To(MatchError(ContainSubstring("already in use")))
			Expect(memory.Regions()).To(HaveLen(1))
			Expect(memory.Region("data").Base).To(Equal(uint32(0x1000)))
		})

		It("should reject a region at address 0", func() {
			_, err := memory.Map("low", 0, make([]byte, 16))
			Expect(err).To(MatchError(ContainSubstring("address 0")))
			Expect(memory.Regions()).To(BeEmpty())
		})

		It("should share the backing slice with the caller", func() {
			buf := make([]byte, 8)
			_, err := memory.Map("data", emu.DataBase, buf)
			Expect(err).NotTo(HaveOccurred())

			Expect(memory.Write32(emu.DataBase+4, 0x11223344)).To(Succeed())
			Expect(buf[4:]).To(Equal([]byte{0x44, 0x33, 0x22, 0x11}))
		})
	})

	Describe("Unmap and Region", func() {
		It("should look up and remove regions by name", func() {
			_, err := memory.Map("data", emu.DataBase, make([]byte, 4))
			Expect(err).NotTo(HaveOccurred())

			Expect(memory.Region("data")).NotTo(BeNil())
			Expect(memory.Region("data").End()).To(Equal(uint64(emu.DataBase) + 4))
			Expect(memory.Unmap("data")).To(BeTrue())
			Expect(memory.Region("data")).To(BeNil())
			Expect(memory.Unmap("data")).To(BeFalse())
		})
	})

	Describe("access", func() {
		BeforeEach(func() {
			Expect(memory.LoadProgram(emu.CodeBase, []byte{0x04, 0x00, 0x81, 0xE2})).To(Succeed())
		})

		It("should read little-endian words", func() {
			Expect(memory.Read32(emu.CodeBase)).To(Equal(uint32(0xE2810004)))
			Expect(memory.Read8(emu.CodeBase + 3)).To(Equal(uint8(0xE2)))
		})

		It("should copy the program bytes", func() {
			program := []byte{1, 2, 3, 4}
			Expect(memory.LoadProgram(0x4000, program)).NotTo(Succeed()) // "code" is taken

			m := emu.NewMemory()
			Expect(m.LoadProgram(0x4000, program)).To(Succeed())
			program[0] = 9
			Expect(m.Read8(0x4000)).To(Equal(uint8(1)))
		})

		It("should write bytes and words", func() {
			Expect(memory.Write8(emu.CodeBase, 0xAA)).To(Succeed())
			Expect(memory.Read32(emu.CodeBase)).To(Equal(uint32(0xE28100AA)))

			Expect(memory.Write32(emu.CodeBase, 0xDEADBEEF)).To(Succeed())
			Expect(memory.Read8(emu.CodeBase)).To(Equal(uint8(0xEF)))
		})

		It("should reject accesses outside every region", func() {
			_, err := memory.Read8(0)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))

			_, err = memory.Read32(emu.CodeBase + 4)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))

			Expect(memory.Write8(emu.CodeBase-1, 0)).To(MatchError(emu.ErrOutOfBounds))
		})

		It("should reject words that straddle the end of a region", func() {
			_, err := memory.Read32(emu.CodeBase + 2)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))
			Expect(memory.Write32(emu.CodeBase+1, 0)).To(MatchError(emu.ErrOutOfBounds))
		})
	})
})
