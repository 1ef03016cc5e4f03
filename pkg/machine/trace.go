package machine

import (
	"strconv"

	"github.com/jkirk/forthtrace/pkg/core"
)

// WordRange names the word containing an address and its first/last
// instruction addresses.
type WordRange struct {
	Name  string
	First int
	Last  int
}

// ThisWord walks backward from pc to the nearest marker cell, then
// forward from the cell after that marker until it finds a
// non-instruction cell. The marker is the word's name; the forward
// walk's last instruction address is one before where it stopped.
//
// Returns ok=false if pc lies outside memory or has no preceding
// marker at all; once the base ROM has been laid down, every pc inside
// memory has one.
func ThisWord(mem core.Memory, pc int) (wr WordRange, ok bool) {
	nameAddr := -1
	for addr := pc; addr >= 0; addr-- {
		cell, err := mem.Load(addr)
		if err != nil {
			return WordRange{}, false
		}
		if cell.Kind == core.KindMarker {
			nameAddr = addr
			wr.Name = cell.Marker
			break
		}
	}
	if nameAddr < 0 {
		return WordRange{}, false
	}
	wr.First = nameAddr + 1
	last := wr.First
	for addr := wr.First; addr < mem.Size(); addr++ {
		cell, err := mem.Load(addr)
		if err != nil || cell.Kind != core.KindInstr {
			break
		}
		last = addr
	}
	wr.Last = last
	return wr, true
}

// Snapshot is the per-step, read-only view the trace renderer
// consumes. It is a copy: mutating a Snapshot never affects the VM,
// and a Snapshot taken after Step never changes afterward (it is
// read-only and snapshot-consistent).
type Snapshot struct {
	Step        int
	PC          int
	DataStack   []int
	DataPtr     int
	ReturnStack []int
	ReturnPtr   int
	Word        WordRange
}

// Snapshot captures the VM's current, read-only trace view. step is
// the caller's running step counter (the VM itself has no notion of
// step count, only PC and the two stacks).
func (vm *VM) Snapshot(step int) Snapshot {
	wr, _ := ThisWord(vm.Core, vm.PC)
	return Snapshot{
		Step:        step,
		PC:          vm.PC,
		DataStack:   vm.Data.Cells(),
		DataPtr:     vm.Data.Ptr(),
		ReturnStack: vm.Return.Cells(),
		ReturnPtr:   vm.Return.Ptr(),
		Word:        wr,
	}
}

// DisassembleWord renders every cell in [wr.First, wr.Last] as
// "mnemonic [arg]" lines, in address order, for a trace sink to list
// alongside an arrow at the current PC.
func DisassembleWord(mem core.Memory, wr WordRange) []string {
	lines := make([]string, 0, wr.Last-wr.First+1)
	for addr := wr.First; addr <= wr.Last; addr++ {
		cell, err := mem.Load(addr)
		if err != nil {
			break
		}
		mnemonic, arg, hasArg := core.Decode(cell)
		if hasArg {
			lines = append(lines, mnemonic+" "+strconv.Itoa(arg))
		} else {
			lines = append(lines, mnemonic)
		}
	}
	return lines
}
