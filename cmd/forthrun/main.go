// Command forthrun compiles and runs a single Forth source file (or
// an inline -e fragment), flag-driven and single-shot.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"golang.org/x/term"

	"github.com/jkirk/forthtrace/pkg/compiler"
	"github.com/jkirk/forthtrace/pkg/machine"
)

var (
	coreFlag   = flag.Int("core", machine.DefaultCoreSize, "core memory cells")
	dataFlag   = flag.Int("data", machine.DefaultDataSize, "data stack capacity")
	returnFlag = flag.Int("return", machine.DefaultReturnSize, "return stack capacity")
	traceFlag  = flag.Bool("trace", false, "print one line per step")
	jsonFlag   = flag.Bool("json", false, "print one JSON snapshot per step")
	copyFlag   = flag.Bool("copy", false, "copy the final data stack to the clipboard")
	srcFlag    = flag.String("e", "", "inline source, instead of a file argument")
)

func main() {
	flag.Parse()

	source, err := readSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "forthrun: %v\n", err)
		os.Exit(1)
	}

	vm, err := compiler.Compile(source,
		compiler.WithCoreSize(*coreFlag),
		compiler.WithDataSize(*dataFlag),
		compiler.WithReturnSize(*returnFlag),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "forthrun: compile error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonFlag:
		err = runJSON(vm)
	case *traceFlag:
		err = runTrace(vm)
	default:
		err = vm.Run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "forthrun: runtime error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nFinal data stack: %v\n", vm.Data.Cells())

	if *copyFlag {
		if err := clipboard.WriteAll(fmt.Sprint(vm.Data.Cells())); err != nil {
			fmt.Fprintf(os.Stderr, "forthrun: clipboard: %v\n", err)
		}
	}
}

func readSource() (string, error) {
	if *srcFlag != "" {
		return *srcFlag, nil
	}
	if len(flag.Args()) < 1 {
		return "", fmt.Errorf("usage: forthrun [options] <file.fs | -e 'source'>")
	}
	b, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// traceWidth returns the terminal width each -trace line is cut off
// at, falling back to 80 columns off a TTY.
func traceWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func runTrace(vm *machine.VM) error {
	width := traceWidth()
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	step := 0
	for {
		snap := vm.Snapshot(step)
		line := fmt.Sprintf("#%d pc=%d data=%v return=%v", snap.Step, snap.PC, snap.DataStack, snap.ReturnStack)
		if len(line) > width {
			line = line[:width]
		}
		fmt.Fprintln(out, line)

		running, err := vm.Step()
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		step++
	}
}

func runJSON(vm *machine.VM) error {
	enc := json.NewEncoder(os.Stdout)
	step := 0
	for {
		if err := enc.Encode(vm.Snapshot(step)); err != nil {
			return err
		}
		running, err := vm.Step()
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		step++
	}
}
