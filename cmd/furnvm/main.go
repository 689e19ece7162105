// Command furnvm is the reference VM runner: it loads a compiled image and
// executes it, optionally single-stepping under a raw terminal (-debug) or
// printing a trace of every instruction (-trace).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"furncc/pkg/vm"
)

var (
	debugFlag = flag.Bool("debug", false, "single-step under a raw terminal, one key per instruction")
	traceFlag = flag.Bool("trace", false, "print every instruction as it executes")
)

func main() {
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("usage: furnvm [options] <image>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	image, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading image: %v\n", err)
		os.Exit(1)
	}

	machine, err := vm.New(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading image: %v\n", err)
		os.Exit(1)
	}
	machine.Trace = *traceFlag

	switch {
	case *debugFlag:
		runDebug(machine)
	default:
		if err := machine.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "---runtime error---\n%v\n", err)
			os.Exit(1)
		}
	}

	os.Exit(int(machine.ExitCode()))
}

// runDebug single-steps machine, reading one key at a time from a raw
// terminal when stdin is a TTY (so Enter/'q'/'c' don't require pressing
// Enter), falling back to line-buffered input otherwise — e.g. when stdin
// is redirected from a file in a test harness.
func runDebug(machine *vm.VM) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		runDebugRaw(machine, fd)
		return
	}
	runDebugLine(machine)
}

func runDebugRaw(machine *vm.VM, fd int) {
	old, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to enter raw mode: %v\n", err)
		runDebugLine(machine)
		return
	}
	defer term.Restore(fd, old)

	fmt.Print("=== furnvm debugger ===\r\n")
	fmt.Print("any key to step, 'q' to quit, 'c' to continue\r\n")

	buf := make([]byte, 1)
	for {
		fmt.Printf("\r\npc=0x%X\r\n", machine.PC())
		if _, err := os.Stdin.Read(buf); err != nil {
			break
		}
		if buf[0] == 'q' {
			break
		}
		if buf[0] == 'c' {
			if err := machine.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\r\n", err)
			}
			break
		}

		cont, err := machine.Step()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\r\n", err)
			break
		}
		if !cont {
			fmt.Print("program halted\r\n")
			break
		}
	}
}

// runDebugLine is the non-TTY fallback: Enter to step, "q"/"c" otherwise,
// the same shape as the teacher's original debugger before raw-mode
// stepping was added.
func runDebugLine(machine *vm.VM) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("=== furnvm debugger (line mode) ===")
	fmt.Println("Enter to step, 'q' to quit, 'c' to continue")

	for {
		fmt.Printf("pc=0x%X > ", machine.PC())
		if !scanner.Scan() {
			break
		}
		switch scanner.Text() {
		case "q":
			return
		case "c":
			if err := machine.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			return
		}

		cont, err := machine.Step()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		if !cont {
			fmt.Println("program halted")
			return
		}
	}
}
