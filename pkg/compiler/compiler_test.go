package compiler

import (
	"testing"

	"github.com/jkirk/forthtrace/pkg/core"
	"github.com/jkirk/forthtrace/pkg/machine"
)

// runSource compiles and runs source to completion, returning the
// final data stack, bottom first (Cells() already orders
// bottom-to-top).
func runSource(t *testing.T, source string) []int {
	t.Helper()
	vm, err := Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q): %v", source, err)
	}
	if err := vm.Run(); err != nil {
		t.Fatalf("Run(%q): %v", source, err)
	}
	if vm.Return.Ptr() != -1 {
		t.Errorf("Run(%q): return ptr at halt = %d, want -1", source, vm.Return.Ptr())
	}
	return vm.Data.Cells()
}

func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   []int
	}{
		{"double", ": double dup + ; 3 double", []int{6}},
		{"if-else", ": t 1 2 > if 7 else 8 then ; t", []int{8}},
		{"begin-until", ": z 0 begin 1 + dup 3 = until ; z", []int{3}},
		{"do-loop", ": c 10 0 do i loop ; c", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"do-plus-loop", ": c 10 0 do i 2 +loop ; c", []int{0, 2, 4, 6, 8}},
		{"variable", "variable v 42 v ! v @", []int{42}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := runSource(t, c.source)
			if !intsEqual(got, c.want) {
				t.Errorf("%s: final data stack = %v, want %v", c.source, got, c.want)
			}
		})
	}
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDictionaryShadowing(t *testing.T) {
	got := runSource(t, ": f 1 ; : f 2 ; f")
	if !intsEqual(got, []int{2}) {
		t.Errorf("shadowed word call = %v, want [2]", got)
	}
}

func TestJumpPatchingLeavesNoSentinel(t *testing.T) {
	vm, err := Compile(": t 1 2 > if 7 else 8 then ;")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for addr := 0; addr < vm.Core.Size(); addr++ {
		cell, err := vm.Core.Load(addr)
		if err != nil {
			break
		}
		if cell.Kind != core.KindInstr {
			continue
		}
		if (cell.Instr.Op == core.OpJump || cell.Instr.Op == core.OpJumpz) && cell.Instr.Arg == -1 {
			t.Errorf("unpatched sentinel JUMP/JUMPZ at @%d", addr)
		}
	}
}

func TestRelocationLandsInsideEntrypoint(t *testing.T) {
	vm, err := Compile("0 begin 1 + dup 3 = until")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// Compile sets vm.PC to the entrypoint's first instruction.
	entryAddr, found := machine.ThisWord(vm.Core, vm.PC)
	if !found {
		t.Fatal("entrypoint word not found at vm.PC")
	}
	for addr := entryAddr.First; addr <= entryAddr.Last; addr++ {
		cell, err := vm.Core.Load(addr)
		if err != nil {
			t.Fatalf("Load(%d): %v", addr, err)
		}
		if cell.Kind != core.KindInstr {
			continue
		}
		if cell.Instr.Op == core.OpJump || cell.Instr.Op == core.OpJumpz {
			if cell.Instr.Arg < entryAddr.First || cell.Instr.Arg > entryAddr.Last {
				t.Errorf("relocated jump @%d targets %d, outside entrypoint body [%d,%d]",
					addr, cell.Instr.Arg, entryAddr.First, entryAddr.Last)
			}
		}
	}
}

func TestBaseROMIntegrity(t *testing.T) {
	vm, err := Compile("1 1 +")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, w := range romWords {
		if _, found := findROMMarker(t, vm.Core, w.name); !found {
			t.Errorf("ROM word %q missing from compiled core", w.name)
		}
	}
}

func findROMMarker(t *testing.T, mem core.Memory, name string) (int, bool) {
	t.Helper()
	for addr := 0; addr < mem.Size(); addr++ {
		cell, err := mem.Load(addr)
		if err != nil {
			break
		}
		if cell.Kind == core.KindMarker && cell.Marker == name {
			return addr, true
		}
	}
	return 0, false
}

func TestUnbalancedControlError(t *testing.T) {
	_, err := Compile(": t 1 if 2 ;")
	if err == nil {
		t.Fatal("unbalanced if/then: want error, got nil")
	}
	if _, ok := err.(UnbalancedControlError); !ok {
		t.Errorf("error type = %T, want UnbalancedControlError", err)
	}
}

func TestUnknownWordError(t *testing.T) {
	_, err := Compile("bogus-word-nobody-defined")
	if err == nil {
		t.Fatal("unknown word: want error, got nil")
	}
	if _, ok := err.(UnknownWordError); !ok {
		t.Errorf("error type = %T, want UnknownWordError", err)
	}
}
