// Package vm implements the reference virtual machine for furncc's bytecode
// image format: a single flat byte memory holding the memory-mapped register
// file, the loaded program, and a growing runtime stack, executed by a
// straight fetch-decode-execute loop (spec.md §4, §9).
package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"furncc/pkg/bytecode"
)

// stackRegionStart is where the runtime data stack begins in VM memory, far
// enough past DataRegionStart that ordinary programs' static data can never
// grow into it (no bounds check enforces this, mirroring the original's
// unchecked code/data boundary — spec.md §9 OQ4).
const stackRegionStart = 1 << 16

// maxStackBytes bounds how far the data stack may grow past stackRegionStart.
const maxStackBytes = 1 << 16

// maxReturnDepth bounds the internal call/return address stack, separate
// from the data stack since no bytecode ever takes its address.
const maxReturnDepth = 4096

// VM executes a compiled image. Every LOAD/STORE/DEREF/STACK_* operand
// addresses the same flat mem buffer the image was written into, so a
// compile-time register address, a code label, a string-data address, and a
// runtime stack slot are all ordinary addresses into the one array.
type VM struct {
	mem         []byte
	sp          uint64 // data stack pointer: address of the next free byte
	pc          uint64
	returnStack []uint64
	running     bool
	exitCode    int64

	flagZero    bool
	flagGreater bool
	flagEqual   bool

	Output io.Writer
	Trace  bool
}

// New loads image (as produced by codegen.Generator.Image().Bytes()) into a
// fresh VM, ready to Run or Step. The program counter starts right after the
// fixed five-byte header.
func New(image []byte) (*VM, error) {
	if len(image) < bytecode.RegisterFileSize+5 {
		return nil, fmt.Errorf("image too short to contain a header")
	}
	header := image[bytecode.RegisterFileSize : bytecode.RegisterFileSize+5]
	if string(header[:4]) != "FCVM" {
		return nil, fmt.Errorf("bad image magic %q", header[:4])
	}

	memLen := len(image)
	if want := stackRegionStart + maxStackBytes; memLen < want {
		memLen = want
	}
	mem := make([]byte, memLen)
	copy(mem, image)

	return &VM{
		mem:         mem,
		sp:          stackRegionStart,
		pc:          uint64(bytecode.RegisterFileSize) + 5,
		returnStack: make([]uint64, 0, maxReturnDepth),
		running:     true,
		Output:      os.Stdout,
	}, nil
}

// ExitCode returns the status passed to the exit syscall; meaningful only
// once Running is false.
func (m *VM) ExitCode() int64 { return m.exitCode }

// Running reports whether the VM has not yet executed an exit syscall. A
// program counter past the end of memory makes Step return an error; it does
// not clear Running.
func (m *VM) Running() bool { return m.running }

// PC returns the current program counter.
func (m *VM) PC() uint64 { return m.pc }

// Memory exposes the raw VM memory, for the debug UI and tests.
func (m *VM) Memory() []byte { return m.mem }

func (m *VM) readQword(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(m.mem[addr : addr+8])
}

func (m *VM) writeQword(addr uint64, v uint64) {
	binary.LittleEndian.PutUint64(m.mem[addr:addr+8], v)
}

func (m *VM) fetchQword() uint64 {
	v := m.readQword(m.pc)
	m.pc += bytecode.QwordWidth
	return v
}

func (m *VM) fetchByte() byte {
	b := m.mem[m.pc]
	m.pc++
	return b
}

func (m *VM) tracef(format string, args ...any) {
	if m.Trace {
		fmt.Fprintf(os.Stderr, "vm: "+format+"\n", args...)
	}
}

// Step executes a single instruction and reports whether execution should
// continue.
func (m *VM) Step() (bool, error) {
	if !m.running {
		return false, nil
	}
	if m.pc >= uint64(len(m.mem)) {
		return false, fmt.Errorf("program counter 0x%X out of bounds", m.pc)
	}

	op := m.fetchByte()
	m.tracef("pc=0x%X op=%s sp=0x%X", m.pc-1, bytecode.OpcodeName(op), m.sp)

	switch op {
	case bytecode.OpLoadQword:
		dest := m.fetchQword()
		val := m.fetchQword()
		m.writeQword(dest, val)

	case bytecode.OpLoadByte:
		dest := m.fetchQword()
		m.mem[dest] = m.fetchByte()

	case bytecode.OpStackReadQword:
		offset := m.fetchQword()
		dest := m.fetchQword()
		m.writeQword(dest, m.readQword(m.sp-offset))

	case bytecode.OpStackWriteQword:
		offset := m.fetchQword()
		src := m.fetchQword()
		m.writeQword(m.sp-offset, m.readQword(src))

	case bytecode.OpStackPointerFromOffset:
		offset := m.fetchQword()
		dest := m.fetchQword()
		m.writeQword(dest, m.sp-offset)

	case bytecode.OpPushQword:
		src := m.fetchQword()
		if m.sp+8 > stackRegionStart+maxStackBytes {
			return false, fmt.Errorf("data stack overflow at pc=0x%X", m.pc)
		}
		m.writeQword(m.sp, m.readQword(src))
		m.sp += 8

	case bytecode.OpPopQword:
		dest := m.fetchQword()
		if m.sp < stackRegionStart+8 {
			return false, fmt.Errorf("data stack underflow at pc=0x%X", m.pc)
		}
		m.sp -= 8
		m.writeQword(dest, m.readQword(m.sp))

	case bytecode.OpMoveQword:
		src := m.fetchQword()
		dest := m.fetchQword()
		m.writeQword(dest, m.readQword(src))

	case bytecode.OpMoveDynamic:
		src := m.fetchQword()
		srcWidth := m.fetchByte()
		dest := m.fetchQword()
		dstWidth := m.fetchByte()
		width := srcWidth
		if dstWidth < width {
			width = dstWidth
		}
		copy(m.mem[dest:dest+uint64(width)], m.mem[src:src+uint64(width)])

	case bytecode.OpDerefQword:
		src := m.fetchQword()
		dest := m.fetchQword()
		ptr := m.readQword(src)
		m.writeQword(dest, m.readQword(ptr))

	case bytecode.OpDerefByte:
		src := m.fetchQword()
		dest := m.fetchQword()
		ptr := m.readQword(src)
		m.mem[dest] = m.mem[ptr]

	case bytecode.OpIncQword:
		addr := m.fetchQword()
		m.writeQword(addr, m.readQword(addr)+1)

	case bytecode.OpAddQword:
		dest := m.fetchQword()
		a := m.fetchQword()
		b := m.fetchQword()
		m.writeQword(dest, m.readQword(a)+m.readQword(b))

	case bytecode.OpSubQword:
		dest := m.fetchQword()
		a := m.fetchQword()
		b := m.fetchQword()
		m.writeQword(dest, m.readQword(a)-m.readQword(b))

	case bytecode.OpCompareQword:
		a := m.fetchQword()
		b := m.fetchQword()
		av, bv := int64(m.readQword(a)), int64(m.readQword(b))
		m.flagGreater = av > bv
		m.flagEqual = av == bv

	case bytecode.OpCompareByte:
		a := m.fetchQword()
		b := m.fetchQword()
		av, bv := m.mem[a], m.mem[b]
		m.flagGreater = av > bv
		m.flagEqual = av == bv

	case bytecode.OpMapGreaterByte:
		dest := m.fetchQword()
		if m.flagGreater {
			m.mem[dest] = 1
		} else {
			m.mem[dest] = 0
		}

	case bytecode.OpSetFlagsByte:
		addr := m.fetchQword()
		m.flagZero = m.mem[addr] == 0

	case bytecode.OpTickFlags:
		// Flags are computed synchronously by COMPARE_*; nothing to latch.

	case bytecode.OpJump:
		m.pc = m.fetchQword()

	case bytecode.OpJumpIfZero:
		target := m.fetchQword()
		if m.flagZero {
			m.pc = target
		}

	case bytecode.OpJumpIfEqual:
		target := m.fetchQword()
		if m.flagEqual {
			m.pc = target
		}

	case bytecode.OpCall:
		target := m.fetchQword()
		if len(m.returnStack) >= maxReturnDepth {
			return false, fmt.Errorf("call stack overflow at pc=0x%X", m.pc)
		}
		m.returnStack = append(m.returnStack, m.pc)
		m.pc = target

	case bytecode.OpReturn:
		if len(m.returnStack) == 0 {
			return false, fmt.Errorf("return stack underflow at pc=0x%X", m.pc)
		}
		top := len(m.returnStack) - 1
		m.pc = m.returnStack[top]
		m.returnStack = m.returnStack[:top]

	case bytecode.OpSyscall:
		num := m.fetchByte()
		dest := m.fetchQword()
		if err := m.syscall(num, dest); err != nil {
			return false, err
		}

	case bytecode.OpDumpState:
		fmt.Fprint(os.Stderr, m.DebugInfo())

	default:
		return false, fmt.Errorf("unknown opcode 0x%02X at pc=0x%X", op, m.pc-1)
	}

	return m.running, nil
}

func (m *VM) syscall(num byte, dest uint64) error {
	switch num {
	case bytecode.SysnumExit:
		m.exitCode = int64(int8(m.mem[bytecode.RegisterA]))
		m.running = false

	case bytecode.SysnumWriteOut:
		addr := m.readQword(bytecode.SyscallArg1)
		n := m.readQword(bytecode.SyscallArg2)
		written, err := m.Output.Write(m.mem[addr : addr+n])
		if err != nil {
			return fmt.Errorf("write syscall: %w", err)
		}
		m.writeQword(dest, uint64(written))

	default:
		return fmt.Errorf("unknown syscall %d", num)
	}
	return nil
}

// Run steps the VM until it exits or a fault occurs.
func (m *VM) Run() error {
	for {
		cont, err := m.Step()
		if err != nil {
			return fmt.Errorf("%w\n%s", err, m.DebugInfo())
		}
		if !cont {
			return nil
		}
	}
}

// DebugInfo renders register, stack, and disassembly context around the
// current program counter, used by fault messages and the -debug stepper.
func (m *VM) DebugInfo() string {
	info := fmt.Sprintf("PC: 0x%X\n", m.pc)
	info += fmt.Sprintf("REGISTER64_A=%d B=%d C=%d D=%d\n",
		m.readQword(bytecode.Register64A), m.readQword(bytecode.Register64B),
		m.readQword(bytecode.Register64C), m.readQword(bytecode.Register64D))
	info += fmt.Sprintf("REGISTER_A=%d B=%d C=%d\n",
		m.mem[bytecode.RegisterA], m.mem[bytecode.RegisterB], m.mem[bytecode.RegisterC])
	info += fmt.Sprintf("Data stack: sp=0x%X depth=%d bytes\n", m.sp, m.sp-stackRegionStart)
	info += fmt.Sprintf("Return stack depth: %d/%d\n", len(m.returnStack), maxReturnDepth)

	if m.pc < uint64(len(m.mem)) {
		info += fmt.Sprintf("Current instruction: %s (0x%02X)\n",
			bytecode.OpcodeName(m.mem[m.pc]), m.mem[m.pc])
	}

	start, end := m.pc, m.pc+10
	if start > 5 {
		start -= 5
	} else {
		start = 0
	}
	if end > uint64(len(m.mem)) {
		end = uint64(len(m.mem))
	}
	info += "Bytecode around PC:\n"
	for i := start; i < end; i++ {
		marker := " "
		if i == m.pc {
			marker = ">"
		}
		info += fmt.Sprintf("%s 0x%04X: 0x%02X  %s\n", marker, i, m.mem[i], bytecode.OpcodeName(m.mem[i]))
	}
	return info
}
