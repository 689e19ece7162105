// Command furncc compiles a single source file to a bytecode image, per the
// CLI contract of spec.md §6: `furncc compile <path>`, writing the image to
// the fixed name `out` in the working directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"

	"furncc/pkg/ast"
	"furncc/pkg/codegen"
	"furncc/pkg/token"
)

// maxSourceBytes mirrors the reference driver's fixed 256-byte source
// buffer (spec.md §5/§9 OQ5): furncc reads at most this many bytes and
// compiles whatever it got, exactly like the original's fread into a
// fixed buffer — a longer file is silently truncated, not rejected.
const maxSourceBytes = 256

var (
	copyFlag  = flag.Bool("copy", false, "copy the hex-dumped image to the clipboard")
	traceFlag = flag.Bool("trace", false, "trace lexing, parsing, and codegen to stderr")
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) < 2 || args[0] != "compile" {
		fmt.Println("no input file")
		fmt.Println("usage: furncc compile <path>")
		os.Exit(1)
	}

	source, err := readSource(args[1])
	if err != nil {
		fmt.Printf("failed to open %s: %v\n", args[1], err)
		os.Exit(1)
	}

	lexer := token.NewLexer(source)
	lexer.Trace = *traceFlag
	toks := lexer.Tokenize()

	parser := ast.NewParser(toks)
	parser.Trace = *traceFlag
	prog := parser.Parse()

	gen := codegen.NewGenerator()
	gen.Trace = *traceFlag
	gen.Generate(prog)

	image := gen.Image().Bytes()
	if err := os.WriteFile("out", image, 0o644); err != nil {
		fmt.Printf("failed to write out: %v\n", err)
		os.Exit(1)
	}

	if *copyFlag {
		if err := clipboard.WriteAll(hexDump(image)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to copy to clipboard: %v\n", err)
		}
	}

	if gen.HasErrors() {
		fmt.Println("compilation has finished with errors")
		os.Exit(1)
	}
}

// readSource reads up to maxSourceBytes from path, silently truncating
// anything longer rather than rejecting it — matching the original driver's
// fread into a fixed-size buffer (spec.md §9 OQ5).
func readSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, maxSourceBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return string(buf[:n]), nil
}

func hexDump(b []byte) string {
	var out []byte
	for i, c := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, fmt.Sprintf("%02x", c)...)
	}
	return string(out)
}
