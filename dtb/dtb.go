// Package dtb parses a flattened device tree blob (FDT/DTB) to discover
// platform hardware at boot: CPU cores, the UART, the virtio-mmio block
// device, and the interrupt controller. See original_source/kernel/dtb.c,
// which this package is a direct translation of.
package dtb

import (
	"encoding/binary"
	"fmt"

	"rvkernel/defs"
)

const (
	magic      uint32 = 0xd00dfeed
	beginNode  uint32 = 0x1
	endNode    uint32 = 0x2
	prop       uint32 = 0x3
	nop        uint32 = 0x4
	end        uint32 = 0x9
	headerSize        = 40 // ten big-endian uint32 fields
)

// / CpuInfo_t records one CPU node discovered in the device tree.
type CpuInfo_t struct {
	Reg     uint64 /// device-tree "reg" value, interpreted as a base id
	Phandle uint32 /// device-tree "phandle" value
}

// / Platform_t is the immutable platform descriptor populated once at boot
// / by Parse. After Parse returns, every field is read-only for the
// / lifetime of the kernel.
type Platform_t struct {
	UartBase   uint64
	UartIRQ    uint32
	VirtioBase uint64
	VirtioIRQ  uint32
	PlicBase   uint64
	Cpus       []CpuInfo_t
}

type header struct {
	Magic            uint32
	TotalSize        uint32
	OffDtStruct      uint32
	OffDtStrings     uint32
	OffMemRsvmap     uint32
	Version          uint32
	LastCompVersion  uint32
	BootCpuidPhys    uint32
	SizeDtStrings    uint32
	SizeDtStruct     uint32
}

func readHeader(blob []byte) header {
	if len(blob) < headerSize {
		panic("dtb: blob smaller than header")
	}
	be := binary.BigEndian
	return header{
		Magic:           be.Uint32(blob[0:4]),
		TotalSize:       be.Uint32(blob[4:8]),
		OffDtStruct:     be.Uint32(blob[8:12]),
		OffDtStrings:    be.Uint32(blob[12:16]),
		OffMemRsvmap:    be.Uint32(blob[16:20]),
		Version:         be.Uint32(blob[20:24]),
		LastCompVersion: be.Uint32(blob[24:28]),
		BootCpuidPhys:   be.Uint32(blob[28:32]),
		SizeDtStrings:   be.Uint32(blob[32:36]),
		SizeDtStruct:    be.Uint32(blob[36:40]),
	}
}

// parser holds the mutable traversal state for a single Parse call. dtb_init
// is documented as running exactly once at boot and not reentrant; a fresh
// parser is constructed per call so repeated calls (as tests do) don't share
// stale stack state.
type parser struct {
	blob    []byte
	strings []byte

	depth         int
	nodeStack     [defs.MAX_DEPTH]string
	addressCells  [defs.MAX_DEPTH + 1]uint32
	sizeCells     [defs.MAX_DEPTH + 1]uint32

	plat      Platform_t
	curCpu    *CpuInfo_t
}

// / Parse walks the structure block of a flattened device tree held in blob
// / and returns the populated platform descriptor. It panics on any of the
// / fatal conditions this kernel treats as unrecoverable: bad magic, a
// / stream that runs past totalsize, nesting deeper than MAX_DEPTH, depth
// / underflow, a `reg` property whose length disagrees with the inherited
// / cell counts, more CPUs than MAX_CPUS, or an unrecognized tag.
func Parse(blob []byte) *Platform_t {
	h := readHeader(blob)
	if h.Magic != magic {
		panic(fmt.Sprintf("dtb: bad magic %#x", h.Magic))
	}
	if h.TotalSize < headerSize {
		panic("dtb: totalsize smaller than header")
	}
	if int(h.TotalSize) > len(blob) {
		panic("dtb: totalsize exceeds blob length")
	}

	structOff := int(h.OffDtStruct)
	structEnd := int(h.TotalSize)
	if structOff > structEnd || structOff > len(blob) {
		panic("dtb: struct block offset out of bounds")
	}

	p := &parser{
		blob:    blob[:structEnd],
		strings: blob,
	}
	p.run(structOff, int(h.OffDtStrings))
	return &p.plat
}

func (p *parser) run(off, stringsOff int) {
	be := binary.BigEndian
	cur := off
	end_ := len(p.blob)

	for cur < end_ {
		if cur+4 > end_ {
			panic("dtb: stream ran past totalsize reading a tag")
		}
		tag := be.Uint32(p.blob[cur : cur+4])
		cur += 4

		switch tag {
		case beginNode:
			name, consumed := readName(p.blob, cur, end_)
			cur += consumed
			p.pushNode(name)

		case endNode:
			p.popNode()

		case prop:
			if cur+8 > end_ {
				panic("dtb: stream ran past totalsize reading a PROP header")
			}
			length := be.Uint32(p.blob[cur : cur+4])
			nameOff := be.Uint32(p.blob[cur+4 : cur+8])
			cur += 8
			if cur+align4(int(length)) > end_ {
				panic("dtb: stream ran past totalsize reading a PROP value")
			}
			value := p.blob[cur : cur+int(length)]
			propName := readCString(p.strings, int(stringsOff)+int(nameOff))
			p.handleProp(propName, value)
			cur += align4(int(length))

		case nop:
			// ignored

		case end:
			cur = end_

		default:
			panic(fmt.Sprintf("dtb: unknown tag %#x", tag))
		}
	}

	if p.depth != 0 {
		panic("dtb: struct block ended with unclosed nodes")
	}
}

func align4(n int) int { return (n + 3) &^ 3 }

func readName(blob []byte, off, end int) (string, int) {
	i := off
	for i < end && blob[i] != 0 {
		i++
	}
	if i >= end {
		panic("dtb: unterminated node name")
	}
	name := string(blob[off:i])
	nameLen := i - off + 1 // include the NUL
	return name, align4(nameLen)
}

func readCString(blob []byte, off int) string {
	i := off
	for i < len(blob) && blob[i] != 0 {
		i++
	}
	return string(blob[off:i])
}

func (p *parser) pushNode(name string) {
	if p.depth >= defs.MAX_DEPTH {
		panic("dtb: device tree nesting exceeds MAX_DEPTH")
	}
	if hasPrefix(name, "cpu@") {
		if len(p.plat.Cpus) >= defs.MAX_CPUS {
			panic("dtb: too many CPUs in device tree")
		}
		p.plat.Cpus = append(p.plat.Cpus, CpuInfo_t{})
		p.curCpu = &p.plat.Cpus[len(p.plat.Cpus)-1]
	}
	p.nodeStack[p.depth] = name
	p.depth++
	p.addressCells[p.depth] = 0
	p.sizeCells[p.depth] = 0
}

func (p *parser) popNode() {
	if p.depth <= 0 {
		panic("dtb: device tree depth underflow")
	}
	if hasPrefix(p.nodeStack[p.depth-1], "cpu@") {
		p.curCpu = nil
	}
	p.depth--
}

// findCells searches the current depth, then upward, for the first
// nonzero (#address-cells, #size-cells) pair. A tree where every level up
// to the root holds all zeros is malformed (the root always declares
// nonzero cells in practice), so running out of levels still at zero
// panics rather than silently returning (0, 0).
func (p *parser) findCells() (uint32, uint32) {
	d := p.depth
	for d > 0 {
		if p.addressCells[d] != 0 || p.sizeCells[d] != 0 {
			return p.addressCells[d], p.sizeCells[d]
		}
		d--
	}
	panic("dtb: no #address-cells/#size-cells found")
}

func (p *parser) handleProp(name string, value []byte) {
	if p.depth == 0 {
		return
	}
	node := p.nodeStack[p.depth-1]

	switch {
	case hasPrefix(node, "serial") || hasPrefix(node, "uart"):
		p.applyRegIRQ(name, value, &p.plat.UartBase, &p.plat.UartIRQ, "UART")
	case hasPrefix(node, "virtio_mmio"):
		p.applyRegIRQ(name, value, &p.plat.VirtioBase, &p.plat.VirtioIRQ, "VIRTIO")
	case node == "interrupt-controller":
		if name == "reg" {
			p.plat.PlicBase = p.obtainReg(value, "PLIC")
		}
	}

	if p.curCpu != nil {
		switch name {
		case "reg":
			p.curCpu.Reg = obtainAddress(value)
		case "phandle":
			if len(value) >= 4 {
				p.curCpu.Phandle = binary.BigEndian.Uint32(value[:4])
			}
		}
	}

	switch name {
	case "#address-cells":
		if len(value) >= 4 {
			p.addressCells[p.depth] = binary.BigEndian.Uint32(value[:4])
		}
	case "#size-cells":
		if len(value) >= 4 {
			p.sizeCells[p.depth] = binary.BigEndian.Uint32(value[:4])
		}
	}
}

func (p *parser) applyRegIRQ(name string, value []byte, base *uint64, irq *uint32, label string) {
	switch name {
	case "reg":
		*base = p.obtainReg(value, label)
	case "interrupts":
		if len(value) >= 4 {
			*irq = binary.BigEndian.Uint32(value[:4])
		}
	}
}

func (p *parser) obtainReg(value []byte, label string) uint64 {
	addressCells, sizeCells := p.findCells()
	want := int(4*addressCells + 4*sizeCells)
	if len(value) != want {
		panic(fmt.Sprintf("dtb: invalid 'reg' property length for %s", label))
	}
	return obtainAddress(value[:4*addressCells])
}

// obtainAddress interprets a one- or two-cell address as a 64-bit value,
// taking only the leading address cells of value (the size cells, if any,
// are not part of the address).
func obtainAddress(value []byte) uint64 {
	be := binary.BigEndian
	switch {
	case len(value) >= 8:
		hi := be.Uint32(value[0:4])
		lo := be.Uint32(value[4:8])
		return uint64(hi)<<32 | uint64(lo)
	case len(value) >= 4:
		return uint64(be.Uint32(value[0:4]))
	default:
		return 0
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
