// Command furnview is a graphical inspector for a compiled image: it steps
// the reference VM one instruction per keypress and renders registers, the
// data stack, and a disassembly window around the program counter onto an
// ebiten canvas — the VM's DebugInfo dump (the text a fault message or a
// DUMP_STATE prints), made visible as pixels instead.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"furncc/pkg/bytecode"
	"furncc/pkg/vm"
)

const (
	screenWidth  = 720
	screenHeight = 560
	lineHeight   = 14
)

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x12, B: 0x18, A: 0xff}
	foregroundColor = color.RGBA{R: 0xd0, G: 0xe8, B: 0xd0, A: 0xff}
	faultColor      = color.RGBA{R: 0xe0, G: 0x60, B: 0x60, A: 0xff}
)

// inspector is the ebiten.Game driving one VM: Space steps an instruction,
// Enter free-runs to completion, R reloads the image from scratch.
type inspector struct {
	imagePath string
	image     []byte
	machine   *vm.VM
	face      font.Face
	fault     string
	output    strings.Builder

	canvas *image.RGBA
}

func newInspector(path string) (*inspector, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ins := &inspector{
		imagePath: path,
		image:     raw,
		face:      basicfont.Face7x13,
		canvas:    image.NewRGBA(image.Rect(0, 0, screenWidth, screenHeight)),
	}
	return ins, ins.reset()
}

func (ins *inspector) reset() error {
	m, err := vm.New(ins.image)
	if err != nil {
		return err
	}
	ins.output.Reset()
	m.Output = &ins.output
	ins.machine = m
	ins.fault = ""
	return nil
}

func (ins *inspector) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := ins.reset(); err != nil {
			ins.fault = err.Error()
		}
		return nil
	}
	if ins.fault != "" || !ins.machine.Running() {
		return nil
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if _, err := ins.machine.Step(); err != nil {
			ins.fault = err.Error()
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		if err := ins.machine.Run(); err != nil {
			ins.fault = err.Error()
		}
	}
	return nil
}

// drawText rasterizes lines onto ins.canvas using a plain golang.org/x/image
// font.Drawer — the same low-level path ebiten's own text package builds on,
// used directly here since the inspector only ever needs monochrome status
// text.
func (ins *inspector) drawText(lines []string) {
	draw.Draw(ins.canvas, ins.canvas.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	for i, line := range lines {
		col := foregroundColor
		if strings.HasPrefix(line, "fault:") {
			col = faultColor
		}
		d := &font.Drawer{
			Dst:  ins.canvas,
			Src:  image.NewUniform(col),
			Face: ins.face,
			Dot:  fixed.P(8, (i+1)*lineHeight),
		}
		d.DrawString(line)
	}
}

func (ins *inspector) Draw(screen *ebiten.Image) {
	lines := []string{
		fmt.Sprintf("furnview - %s", ins.imagePath),
		"space: step   enter: run to completion   r: reload",
		"",
		fmt.Sprintf("pc=0x%X running=%v exit=%d", ins.machine.PC(), ins.machine.Running(), ins.machine.ExitCode()),
	}
	if ins.fault != "" {
		lines = append(lines, "fault: "+ins.fault)
	}
	lines = append(lines, "", "--- output ---")
	lines = append(lines, strings.Split(ins.output.String(), "\n")...)
	lines = append(lines, "", "--- state ---")
	lines = append(lines, strings.Split(ins.machine.DebugInfo(), "\n")...)

	ins.drawText(lines)
	screen.WritePixels(ins.canvas.Pix)
}

func (ins *inspector) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: furnview <image>")
		os.Exit(1)
	}

	ins, err := newInspector(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle(fmt.Sprintf("furnview - %s (register file %d bytes)", os.Args[1], bytecode.RegisterFileSize))
	if err := ebiten.RunGame(ins); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
