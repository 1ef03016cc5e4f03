package machine

import (
	"testing"

	"github.com/jkirk/forthtrace/pkg/core"
)

// assemble lays a straight-line program into a fresh VM's core memory
// starting at address 0. It adds nothing of its own: a caller that
// wants Run to halt cleanly at the single sanctioned empty-return-stack
// condition ends its cells with a RET.
func assemble(t *testing.T, cells ...core.Cell) *VM {
	t.Helper()
	vm := New()
	for i, c := range cells {
		if err := vm.Core.Store(i, c); err != nil {
			t.Fatalf("Store(%d): %v", i, err)
		}
	}
	return vm
}

func TestVMConstAdd(t *testing.T) {
	vm := assemble(t,
		core.InstrCell(core.OpConst, 2),
		core.InstrCell(core.OpConst, 3),
		core.InstrCell(core.OpAdd, 0),
		core.InstrCell(core.OpRet, 0),
	)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := vm.Data.Cells(); len(got) != 1 || got[0] != 5 {
		t.Errorf("final data stack = %v, want [5]", got)
	}
	if vm.Return.Ptr() != -1 {
		t.Errorf("return ptr at halt = %d, want -1", vm.Return.Ptr())
	}
}

func TestVMNotBitwiseComplement(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, -1},
		{-1, 0},
		{5, -6},
	}
	for _, c := range cases {
		vm := assemble(t,
			core.InstrCell(core.OpConst, c.in),
			core.InstrCell(core.OpNot, 0),
			core.InstrCell(core.OpRet, 0),
		)
		if err := vm.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := vm.Data.Cells()
		if len(got) != 1 || got[0] != c.want {
			t.Errorf("not %d = %v, want [%d]", c.in, got, c.want)
		}
	}
}

func TestVMCallReturn(t *testing.T) {
	// entrypoint: CALL 4, RET
	// word body @4: CONST 9, RET
	vm := assemble(t,
		core.InstrCell(core.OpCall, 4),
		core.InstrCell(core.OpRet, 0),
		core.IntCell(0), // padding so the word starts at a clean address
		core.IntCell(0),
		core.InstrCell(core.OpConst, 9),
		core.InstrCell(core.OpRet, 0),
	)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := vm.Data.Cells(); len(got) != 1 || got[0] != 9 {
		t.Errorf("final data stack = %v, want [9]", got)
	}
}

func TestVMJumpz(t *testing.T) {
	// CONST 0, JUMPZ 4, CONST 111, RET(unreached via fallthrough skip)
	vm := assemble(t,
		core.InstrCell(core.OpConst, 0),
		core.InstrCell(core.OpJumpz, 4),
		core.InstrCell(core.OpConst, 111),
		core.InstrCell(core.OpRet, 0),
		core.InstrCell(core.OpConst, 222),
		core.InstrCell(core.OpRet, 0),
	)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := vm.Data.Cells(); len(got) != 1 || got[0] != 222 {
		t.Errorf("final data stack = %v, want [222]", got)
	}
}

func TestVMStackBoundsInvariant(t *testing.T) {
	vm := New(WithDataSize(4), WithReturnSize(4))
	if err := vm.Core.Store(0, core.InstrCell(core.OpConst, 1)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Core.Store(1, core.InstrCell(core.OpRet, 0)); err != nil {
		t.Fatal(err)
	}
	for {
		running, err := vm.Step()
		if vm.Data.Ptr() < -1 || vm.Data.Ptr() >= vm.Data.Cap() {
			t.Fatalf("data ptr %d escaped [-1, %d)", vm.Data.Ptr(), vm.Data.Cap())
		}
		if vm.Return.Ptr() < -1 || vm.Return.Ptr() >= vm.Return.Cap() {
			t.Fatalf("return ptr %d escaped [-1, %d)", vm.Return.Ptr(), vm.Return.Cap())
		}
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if !running {
			break
		}
	}
}

func TestVMUnderflowIsFatal(t *testing.T) {
	vm := assemble(t, core.InstrCell(core.OpAdd, 0))
	if err := vm.Run(); err == nil {
		t.Error("ADD on empty data stack: want error, got nil")
	}
}
