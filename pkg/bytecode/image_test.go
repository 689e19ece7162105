package bytecode

import "testing"

func TestNewImageReservesRegisterFile(t *testing.T) {
	img := NewImage()
	if img.Position() != RegisterFileSize {
		t.Fatalf("Position() = %d, want %d (register file reserved)", img.Position(), RegisterFileSize)
	}
}

func TestWriteHeaderLandsAfterRegisterFile(t *testing.T) {
	img := NewImage()
	img.WriteHeader()
	if got := img.Position(); got != RegisterFileSize+5 {
		t.Fatalf("Position() after header = %d, want %d", got, RegisterFileSize+5)
	}
}

func TestPositionAdvancesByWrittenWidth(t *testing.T) {
	img := NewImage()
	start := img.Position()
	img.PutByte(OpReturn)
	img.PutAddress(123)
	if got, want := img.Position(), start+1+AddressWidth; got != want {
		t.Fatalf("Position() = %d, want %d", got, want)
	}
}

func TestWriteQwordAtBackpatchesWithoutMovingCursor(t *testing.T) {
	img := NewImage()
	img.WriteHeader()
	placeholder := img.Position()
	img.PutAddress(0)
	after := img.Position()

	img.WriteQwordAt(placeholder, 0xDEADBEEF)

	if img.Position() != after {
		t.Errorf("WriteQwordAt moved the cursor: %d -> %d", after, img.Position())
	}
	got := img.Bytes()[placeholder : placeholder+8]
	want := PutUint64(0xDEADBEEF)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backpatched bytes = %x, want %x", got, want)
		}
	}
}

func TestGrowZeroFillsAndIsIdempotent(t *testing.T) {
	img := NewImage()
	img.PutByte(1)
	before := img.Position()

	img.Grow(DataRegionStart)
	if img.Position() != DataRegionStart {
		t.Fatalf("Position() after Grow = %d, want %d", img.Position(), DataRegionStart)
	}
	for i := before; i < DataRegionStart; i++ {
		if img.Bytes()[i] != 0 {
			t.Fatalf("byte %d not zero-filled", i)
		}
	}

	img.Grow(DataRegionStart - 1) // no-op: already past this length
	if img.Position() != DataRegionStart {
		t.Fatalf("Grow shrank the image: Position() = %d", img.Position())
	}
}

func TestDistinctStringsDoNotOverlap(t *testing.T) {
	strs := []string{"hi", "there"}
	offsets := make([]uint64, len(strs))
	offset := uint64(0)
	for i, s := range strs {
		offsets[i] = offset
		offset += uint64(len(s)) + 1
	}
	if offsets[1] < offsets[0]+uint64(len(strs[0]))+1 {
		t.Fatalf("second string's region overlaps the first's NUL terminator")
	}
}
