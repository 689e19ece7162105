package bytecode

import (
	"encoding/binary"
	"io"
)

// header is the fixed file header written before any instruction. Real VM
// header contents are an external contract (spec.md §6); we emit a magic
// plus a version byte, which is enough for the VM to validate the image
// without this package needing to know more of its layout.
var header = []byte{'F', 'C', 'V', 'M', 1}

// Image is a growable linear byte buffer with cursor-append and
// absolute-position overwrite, the VM's addressable memory as seen by the
// compiler (spec.md §4.1).
type Image struct {
	buf []byte
}

// defaultCapacity is the buffer's initial capacity, well past
// DataRegionStart; appends grow the buffer beyond it when needed. It does not
// keep code out of the static data region: no collision check is performed
// (spec.md §9 OQ4).
const defaultCapacity = 1 << 16

// NewImage returns an Image with its register file pre-reserved: the first
// RegisterFileSize bytes are zeroed and never touched by WriteHeader or any
// code/data emission, so a register address and a code label can never
// collide (spec.md §9 OQ4 resolution — the original leaves code and data
// regions unchecked against each other; reserving the register file up
// front sidesteps the same hazard for registers without needing to check
// every emission site).
func NewImage() *Image {
	buf := make([]byte, RegisterFileSize, defaultCapacity)
	return &Image{buf: buf}
}

// Position is the current write cursor — the offset the next append will
// land at.
func (img *Image) Position() uint64 {
	return uint64(len(img.buf))
}

// PutByte appends a single byte, advancing the cursor by one.
func (img *Image) PutByte(b byte) {
	img.buf = append(img.buf, b)
}

// PutAddress appends an eight-byte little-endian address, advancing the
// cursor by AddressWidth.
func (img *Image) PutAddress(addr uint64) {
	img.buf = append(img.buf, PutUint64(addr)...)
}

// PutQword appends an eight-byte little-endian quadword, advancing the
// cursor by QwordWidth. Addresses and qwords share an encoding; the two
// methods exist to document intent at each call site, matching the VM's own
// address/qword operand split (spec.md §4.2).
func (img *Image) PutQword(q uint64) {
	img.buf = append(img.buf, PutUint64(q)...)
}

// WriteQwordAt overwrites the eight bytes at absolute offset pos without
// moving the cursor — the backpatch primitive used to resolve forward
// references (a placeholder CALL/JUMP target, or main's label).
func (img *Image) WriteQwordAt(pos uint64, q uint64) {
	binary.LittleEndian.PutUint64(img.buf[pos:pos+8], q)
}

// WriteByteAt overwrites a single byte at an absolute offset, used by the
// string-data region writer (spec.md §4.6.4).
func (img *Image) WriteByteAt(pos uint64, b byte) {
	img.buf[pos] = b
}

// Grow ensures the buffer is at least n bytes long, zero-filling any gap.
// Used once, by string-data emission, since the data region's start address
// is fixed independently of the code cursor.
func (img *Image) Grow(n uint64) {
	if uint64(len(img.buf)) >= n {
		return
	}
	img.buf = append(img.buf, make([]byte, n-uint64(len(img.buf)))...)
}

// WriteHeader appends the fixed VM file header.
func (img *Image) WriteHeader() {
	img.buf = append(img.buf, header...)
}

// Dump writes the full buffer to sink.
func (img *Image) Dump(sink io.Writer) error {
	_, err := sink.Write(img.buf)
	return err
}

// Bytes exposes the raw buffer, for tests and the reference VM runner that
// load an Image without a round trip through a file.
func (img *Image) Bytes() []byte {
	return img.buf
}
