package bytecode

import "testing"

func TestOpcodeNameKnownAndUnknown(t *testing.T) {
	if got := OpcodeName(OpCall); got != "CALL" {
		t.Errorf("OpcodeName(OpCall) = %q, want CALL", got)
	}
	if got := OpcodeName(0xFE); got == "" {
		t.Errorf("OpcodeName(unknown) returned empty string")
	}
}

func TestRegistersAreDistinctAndWithinRegisterFile(t *testing.T) {
	regs := []uint64{
		Register64A, Register64B, Register64C, Register64D,
		RegisterA, RegisterB, RegisterC, SyscallArg1, SyscallArg2,
	}
	seen := map[uint64]bool{}
	for _, r := range regs {
		if seen[r] {
			t.Errorf("duplicate register address %d", r)
		}
		seen[r] = true
		if r+8 > RegisterFileSize {
			t.Errorf("register address %d falls outside the %d-byte register file", r, RegisterFileSize)
		}
	}
}

func TestPutUint64RoundTrip(t *testing.T) {
	b := PutUint64(0x0102030405060708)
	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("PutUint64 = %x, want little-endian %x", b, want)
		}
	}
}
