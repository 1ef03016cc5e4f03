package compiler

import "github.com/jkirk/forthtrace/pkg/core"

// romWords lists the base dictionary: a name and the instruction
// sequence its body wraps, laid down as marker + body + RET before
// any source is read. findWord's backward scan lets a later
// colon-definition shadow any of these by name.
var romWords = []struct {
	name string
	body []core.Cell
}{
	{"dup", []core.Cell{core.InstrCell(core.OpStk, 0)}},
	{"over", []core.Cell{core.InstrCell(core.OpStk, 1)}},
	{"drop", []core.Cell{core.InstrCell(core.OpDrop, 0)}},
	{"swap", []core.Cell{core.InstrCell(core.OpSwap, 0)}},
	{"@", []core.Cell{core.InstrCell(core.OpLoad, 0)}},
	{"!", []core.Cell{core.InstrCell(core.OpStore, 0)}},
	{"+", []core.Cell{core.InstrCell(core.OpAdd, 0)}},
	{"-", []core.Cell{core.InstrCell(core.OpSub, 0)}},
	{"=", []core.Cell{core.InstrCell(core.OpEqu, 0)}},
	{">", []core.Cell{core.InstrCell(core.OpGtr, 0)}},
	{"<", []core.Cell{core.InstrCell(core.OpLtn, 0)}},
	{"not", []core.Cell{core.InstrCell(core.OpNot, 0)}},
	{"and", []core.Cell{core.InstrCell(core.OpAnd, 0)}},
	{"or", []core.Cell{core.InstrCell(core.OpOr, 0)}},
	{"i", []core.Cell{core.InstrCell(core.OpRstk, 1)}},
	{"i'", []core.Cell{core.InstrCell(core.OpRstk, 2)}},
	{"j", []core.Cell{core.InstrCell(core.OpRstk, 3)}},
	{">r", []core.Cell{core.InstrCell(core.OpStr, 0)}},
	{"r>", []core.Cell{core.InstrCell(core.OpRts, 0)}},

	// [loop] and [+loop] back the do/loop and do/+loop expansions
	// (immediates.go). do leaves the return stack as limit, index
	// (index on top); a plain CALL here then pushes a return address
	// on top of that, so the body first swaps the return address and
	// the index (RSWAP) to reach the index, pulls it onto the data
	// stack (RTS), advances it, pushes it back (STR), then swaps the
	// return address back on top (RSWAP) before comparing against the
	// limit and returning normally. The caller (loopTail) reads the
	// pushed stop flag and jumps back to the loop body while it is
	// zero, or falls through and drops limit/index once it isn't.
	{"[loop]", []core.Cell{
		core.InstrCell(core.OpRswap, 0),
		core.InstrCell(core.OpRts, 0),
		core.InstrCell(core.OpConst, 1),
		core.InstrCell(core.OpAdd, 0),
		core.InstrCell(core.OpStk, 0),
		core.InstrCell(core.OpStr, 0),
		core.InstrCell(core.OpRswap, 0),
		core.InstrCell(core.OpRstk, 2),
		core.InstrCell(core.OpLtn, 0),
		core.InstrCell(core.OpNot, 0),
	}},
	{"[+loop]", []core.Cell{
		core.InstrCell(core.OpRswap, 0),
		core.InstrCell(core.OpRts, 0),
		core.InstrCell(core.OpAdd, 0),
		core.InstrCell(core.OpStk, 0),
		core.InstrCell(core.OpStr, 0),
		core.InstrCell(core.OpRswap, 0),
		core.InstrCell(core.OpRstk, 2),
		core.InstrCell(core.OpLtn, 0),
		core.InstrCell(core.OpNot, 0),
	}},
}

// installROM lays down the base dictionary at the start of the
// compiling region, before any source token is read. Each entry is a
// marker cell, its body, and a closing RET, the same shape a
// colon-definition produces, so findWord and CALL treat ROM words and
// user words identically.
func (c *Compiler) installROM() error {
	c.compiling()
	for _, w := range romWords {
		if _, err := c.addWord(core.MarkerCell(w.name)); err != nil {
			return err
		}
		for _, cell := range w.body {
			if _, err := c.addWord(cell); err != nil {
				return err
			}
		}
		if _, err := c.emitOp(core.OpRet); err != nil {
			return err
		}
	}
	c.interpreting()
	return nil
}
