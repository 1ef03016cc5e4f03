// Command forthtrace-view is a minimal, illustrative consumer of the
// trace interface (machine.Snapshot): one window-sized page per VM
// step, advanced a step at a time on Space or the right arrow key.
// It reads the trace; it does not decide what a "page" looks like in
// any general sense, and it is never imported by pkg/machine,
// pkg/lexer, or pkg/compiler.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/jkirk/forthtrace/pkg/compiler"
	"github.com/jkirk/forthtrace/pkg/machine"
)

const (
	screenWidth  = 720
	screenHeight = 480
)

type page struct {
	vm     *machine.VM
	step   int
	halted bool
	err    error
}

func (p *page) Update() error {
	if p.halted {
		return nil
	}
	if ebiten.IsKeyJustPressed(ebiten.KeySpace) || ebiten.IsKeyJustPressed(ebiten.KeyRight) {
		running, err := p.vm.Step()
		if err != nil {
			p.err = err
			p.halted = true
			return nil
		}
		if !running {
			p.halted = true
			return nil
		}
		p.step++
	}
	return nil
}

func (p *page) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 18, G: 18, B: 24, A: 255})
	face := basicfont.Face7x13

	y := 24
	line := func(format string, args ...any) {
		text.Draw(screen, fmt.Sprintf(format, args...), face, 16, y, color.White)
		y += 18
	}

	snap := p.vm.Snapshot(p.step)

	line("step %d  pc=%d  word=%s", snap.Step, snap.PC, snap.Word.Name)
	y += 8

	line("disassembly:")
	for addr, l := range machine.DisassembleWord(p.vm.Core, snap.Word) {
		marker := "  "
		if addr+snap.Word.First == snap.PC {
			marker = "->"
		}
		line("  %s %d: %s", marker, addr+snap.Word.First, l)
	}
	y += 8

	line("data stack:  %v", snap.DataStack)
	line("return stack: %v", snap.ReturnStack)

	if p.halted {
		y += 16
		if p.err != nil {
			line("halted: %v", p.err)
		} else {
			line("halted (program complete)")
		}
	} else {
		y += 16
		line("space/right: step")
	}
}

func (p *page) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	flag.Parse()
	if len(flag.Args()) < 1 {
		fmt.Fprintln(os.Stderr, "usage: forthtrace-view <file.fs>")
		os.Exit(1)
	}

	src, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "forthtrace-view: %v\n", err)
		os.Exit(1)
	}

	vm, err := compiler.Compile(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "forthtrace-view: compile error: %v\n", err)
		os.Exit(1)
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("forthtrace-view")

	if err := ebiten.RunGame(&page{vm: vm}); err != nil {
		fmt.Fprintf(os.Stderr, "forthtrace-view: %v\n", err)
		os.Exit(1)
	}
}
