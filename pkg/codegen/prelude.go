package codegen

import "furncc/pkg/bytecode"

// emitPrelude writes the header, the entry trampoline to main, the exit
// syscall, and the fixed built-in library, each registered as an ordinary
// function symbol before any user code (spec.md §4.6, §4.6.3).
func (g *Generator) emitPrelude() {
	g.img.WriteHeader()

	g.emitOp(bytecode.OpCall)
	g.mainPlaceholder = g.img.Position()
	g.emitAddr(0) // main's label isn't known yet

	// Truncate the exit status in REGISTER64_A down to the byte-sized
	// REGISTER_A the exit syscall reads its status code from.
	g.emitOp(bytecode.OpMoveDynamic)
	g.emitAddr(bytecode.Register64A)
	g.img.PutByte(8)
	g.emitAddr(bytecode.RegisterA)
	g.img.PutByte(1)

	g.emitOp(bytecode.OpSyscall)
	g.img.PutByte(bytecode.SysnumExit)
	g.emitAddr(bytecode.Register64A)

	g.emitBuiltinWrite()
	g.emitBuiltinInc()
	g.emitBuiltinStrlen()
	g.emitBuiltinPrintf()
	g.emitBuiltinPuts()
	g.emitBuiltinPutchar()
	g.emitBuiltinDumpState()
}

func (g *Generator) registerBuiltin(name string) *Function {
	fn := &Function{Label: g.img.Position()}
	g.syms.AppendGlobal(&Symbol{Name: name, Func: fn})
	return fn
}

// write(buf, len) — SYSCALL 1 (stdout). Arguments are already on the stack
// in the caller-pushed (reverse) order, so buf is on top: the first pop lands
// the first argument (buf) in SYSCALL_ARG1 and the second pop the second
// argument (len) in SYSCALL_ARG2.
func (g *Generator) emitBuiltinWrite() {
	g.registerBuiltin("write")

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(bytecode.SyscallArg1)

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(bytecode.SyscallArg2)

	g.emitOp(bytecode.OpSyscall)
	g.img.PutByte(bytecode.SysnumWriteOut)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpReturn)
}

// inc(x) returns x+1 via a self-patched INC_QWORD, the same trick the
// through-pointer ++ uses (spec.md §4.6.3): B holds the address of
// REGISTER64_A, which is patched into the INC_QWORD operand so the increment
// lands on x in REGISTER64_A.
func (g *Generator) emitBuiltinInc() {
	g.registerBuiltin("inc")

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpLoadQword)
	g.emitAddr(bytecode.Register64B)
	g.emitQword(bytecode.Register64A)

	g.emitSelfPatchMove(bytecode.Register64B)
	g.emitOp(bytecode.OpIncQword)
	g.emitAddr(0)

	g.emitOp(bytecode.OpReturn)
}

// strlen(s) counts bytes until a zero terminator.
func (g *Generator) emitBuiltinStrlen() {
	g.registerBuiltin("strlen")

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(bytecode.Register64A)

	// Save the original pointer in B to subtract from at the end.
	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.Register64B)

	loop := g.img.Position()

	g.emitOp(bytecode.OpDerefByte)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.RegisterA)

	g.emitOp(bytecode.OpSetFlagsByte)
	g.emitAddr(bytecode.RegisterA)

	g.emitOp(bytecode.OpJumpIfZero)
	placeholder := g.img.Position()
	g.emitAddr(0)

	g.emitOp(bytecode.OpIncQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpJump)
	g.emitAddr(loop)

	g.img.WriteQwordAt(placeholder, g.img.Position())

	g.emitOp(bytecode.OpSubQword)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.Register64B)

	g.emitOp(bytecode.OpReturn)
}

// printf(fmt) walks the format string one byte at a time, writing '_' in
// place of every '%' and every other byte unchanged (spec.md §4.6.3:
// "substituting '%' with '_'" — a true replacement, each position writes
// exactly one output byte).
func (g *Generator) emitBuiltinPrintf() {
	g.registerBuiltin("printf")

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpLoadByte)
	g.emitAddr(bytecode.RegisterB)
	g.img.PutByte('%')

	whileStart := g.img.Position()

	g.emitOp(bytecode.OpDerefByte)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.RegisterA)

	g.emitOp(bytecode.OpSetFlagsByte)
	g.emitAddr(bytecode.RegisterA)

	g.emitOp(bytecode.OpJumpIfZero)
	whilePlaceholder := g.img.Position()
	g.emitAddr(0)

	g.emitOp(bytecode.OpCompareByte)
	g.emitAddr(bytecode.RegisterA)
	g.emitAddr(bytecode.RegisterB)

	g.emitOp(bytecode.OpTickFlags)
	g.emitOp(bytecode.OpJumpIfEqual)
	ifPlaceholder := g.img.Position()
	g.emitAddr(0)

	// not '%': write the byte the pointer already addresses.
	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.Register64D)

	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.SyscallArg1)

	g.emitOp(bytecode.OpLoadQword)
	g.emitAddr(bytecode.SyscallArg2)
	g.emitQword(1)

	g.emitOp(bytecode.OpSyscall)
	g.img.PutByte(bytecode.SysnumWriteOut)
	g.emitAddr(0) // result discarded

	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(bytecode.Register64D)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpJump)
	advancePlaceholder := g.img.Position()
	g.emitAddr(0)

	g.img.WriteQwordAt(ifPlaceholder, g.img.Position())

	// '%': write '_' instead of the byte the pointer addresses.
	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(bytecode.Register64A)
	g.emitAddr(bytecode.Register64D)

	g.emitOp(bytecode.OpLoadByte)
	g.emitAddr(bytecode.RegisterC)
	g.img.PutByte('_')

	g.emitOp(bytecode.OpLoadQword)
	g.emitAddr(bytecode.SyscallArg1)
	g.emitQword(bytecode.RegisterC)

	g.emitOp(bytecode.OpLoadQword)
	g.emitAddr(bytecode.SyscallArg2)
	g.emitQword(1)

	g.emitOp(bytecode.OpSyscall)
	g.img.PutByte(bytecode.SysnumWriteOut)
	g.emitAddr(0)

	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(bytecode.Register64D)
	g.emitAddr(bytecode.Register64A)

	g.img.WriteQwordAt(advancePlaceholder, g.img.Position())

	g.emitOp(bytecode.OpIncQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpJump)
	g.emitAddr(whileStart)

	g.img.WriteQwordAt(whilePlaceholder, g.img.Position())

	g.emitOp(bytecode.OpReturn)
}

// puts(s) calls strlen then write.
func (g *Generator) emitBuiltinPuts() {
	g.registerBuiltin("puts")

	g.emitOp(bytecode.OpStackReadQword)
	g.emitQword(bytecode.QwordWidth)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpPushQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpCall)
	g.emitAddr(g.syms.Lookup("strlen").Func.Label)

	g.emitOp(bytecode.OpPushQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpStackReadQword)
	g.emitQword(bytecode.QwordWidth * 2)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpPushQword)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpCall)
	g.emitAddr(g.syms.Lookup("write").Func.Label)

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(0)

	g.emitOp(bytecode.OpReturn)
}

// putchar(c) passes the address of the stack slot holding c to write.
func (g *Generator) emitBuiltinPutchar() {
	g.registerBuiltin("putchar")

	g.emitOp(bytecode.OpStackPointerFromOffset)
	g.emitQword(bytecode.QwordWidth)
	g.emitAddr(bytecode.SyscallArg1)

	g.emitOp(bytecode.OpLoadQword)
	g.emitAddr(bytecode.SyscallArg2)
	g.emitQword(1)

	g.emitOp(bytecode.OpSyscall)
	g.img.PutByte(bytecode.SysnumWriteOut)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpPopQword)
	g.emitAddr(0)

	g.emitOp(bytecode.OpReturn)
}

// dumpstate() asks the VM to print its debug dump: registers, data and return
// stack depths, and the bytecode around the program counter.
func (g *Generator) emitBuiltinDumpState() {
	g.registerBuiltin("dumpstate")

	g.emitOp(bytecode.OpDumpState)
	g.emitOp(bytecode.OpReturn)
}
