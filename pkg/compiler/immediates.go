package compiler

import (
	"fmt"

	"github.com/jkirk/forthtrace/pkg/core"
)

// immediateWords maps each compile-time macro name to its expansion.
// Every entry documents, in its doc comment, its net effect on the
// compiler's address-patch stack.
var immediateWords = map[string]func(*Compiler) error{
	":":        imColon,
	";":        imSemicolon,
	"exit":     imExit,
	"if":       imIf,
	"else":     imElse,
	"then":     imThen,
	"begin":    imBegin,
	"until":    imUntil,
	"repeat":   imRepeat,
	"do":       imDo,
	"loop":     imLoop,
	"+loop":    imPlusLoop,
	"variable": imVariable,
}

// nextWordToken reads the next raw token and requires it to be a
// word (not an integer), for the immediate words that consume a
// following name (`:`, `variable`).
func (c *Compiler) nextWordToken() (string, error) {
	tok, present := c.lex.Word()
	if !present {
		return "", fmt.Errorf("expected a name, got end of source")
	}
	if tok.IsInt {
		return "", fmt.Errorf("expected a name, got integer literal %d", tok.Int)
	}
	return tok.Word, nil
}

// imColon (":"): switch to the compiling region, read the next token
// as the word's name, emit its marker. Net effect on the address
// stack: none.
func imColon(c *Compiler) error {
	name, err := c.nextWordToken()
	if err != nil {
		return err
	}
	c.compiling()
	_, err = c.addWord(core.MarkerCell(name))
	return err
}

// imSemicolon (";"): emit RET, switch back to the interpreting
// region. Net effect on the address stack: none.
func imSemicolon(c *Compiler) error {
	if _, err := c.emitOp(core.OpRet); err != nil {
		return err
	}
	c.interpreting()
	return nil
}

// imExit ("exit"): emit RET. Net effect on the address stack: none.
func imExit(c *Compiler) error {
	_, err := c.emitOp(core.OpRet)
	return err
}

// imIf ("if"): push here, emit JUMPZ with a sentinel target. Net
// effect: pushes one address.
func imIf(c *Compiler) error {
	addr, err := c.emitOpArg(core.OpJumpz, -1)
	if err != nil {
		return err
	}
	c.pushAddr(addr)
	return nil
}

// imElse ("else"): emit JUMP with a sentinel target, patch the
// pending `if`'s JUMPZ to land here (the else branch's start), push
// the new JUMP's address for `then` to patch. Net effect: pops one,
// pushes one.
func imElse(c *Compiler) error {
	ifAddr, ok := c.popAddr()
	if !ok {
		return fmt.Errorf("else without a matching if")
	}
	jmpAddr, err := c.emitOpArg(core.OpJump, -1)
	if err != nil {
		return err
	}
	if err := c.patch(ifAddr, c.here()); err != nil {
		return err
	}
	c.pushAddr(jmpAddr)
	return nil
}

// imThen ("then"): patch the pending if/else branch to land here.
// Net effect: pops one.
func imThen(c *Compiler) error {
	addr, ok := c.popAddr()
	if !ok {
		return fmt.Errorf("then without a matching if/else")
	}
	return c.patch(addr, c.here())
}

// imBegin ("begin"): push here as the loop-back target. Net effect:
// pushes one.
func imBegin(c *Compiler) error {
	c.pushAddr(c.here())
	return nil
}

// imUntil ("until"): emit JUMPZ to the popped begin target (loop
// again while the tested value is zero/false). Net effect: pops one.
func imUntil(c *Compiler) error {
	target, ok := c.popAddr()
	if !ok {
		return fmt.Errorf("until without a matching begin")
	}
	_, err := c.emitOpArg(core.OpJumpz, target)
	return err
}

// imRepeat ("repeat"): emit an unconditional JUMP back to the popped
// begin target. Net effect: pops one.
func imRepeat(c *Compiler) error {
	target, ok := c.popAddr()
	if !ok {
		return fmt.Errorf("repeat without a matching begin")
	}
	_, err := c.emitOpArg(core.OpJump, target)
	return err
}

// imDo ("do"): rearrange limit/index onto the return stack (SWAP,
// STR, STR) and push here as the loop body's back-target. Net
// effect: pushes one.
func imDo(c *Compiler) error {
	if err := singleOp(c, core.OpSwap); err != nil {
		return err
	}
	if err := singleOp(c, core.OpStr); err != nil {
		return err
	}
	if err := singleOp(c, core.OpStr); err != nil {
		return err
	}
	c.pushAddr(c.here())
	return nil
}

// imLoop ("loop"): call the base-ROM [loop] helper, jump back to the
// popped do-target while it reports "continue" (the stop flag it
// leaves on the data stack is zero), otherwise drop the loop's
// limit/index off the return stack. Net effect: pops one.
func imLoop(c *Compiler) error {
	return loopTail(c, "[loop]")
}

// imPlusLoop ("+loop"): as imLoop, but calls the [+loop] helper,
// which advances the index by the value on top of the data stack
// instead of by one. Net effect: pops one.
func imPlusLoop(c *Compiler) error {
	return loopTail(c, "[+loop]")
}

func loopTail(c *Compiler, helper string) error {
	back, ok := c.popAddr()
	if !ok {
		return fmt.Errorf("%s without a matching do", helper)
	}
	addr, found := c.findWord(helper)
	if !found {
		return fmt.Errorf("compiler: base ROM helper %s missing", helper)
	}
	if err := c.emitCall(addr + 1); err != nil {
		return err
	}
	if _, err := c.emitOpArg(core.OpJumpz, back); err != nil {
		return err
	}
	if err := singleOp(c, core.OpRdrop); err != nil {
		return err
	}
	return singleOp(c, core.OpRdrop)
}

// imVariable ("variable"): switch to the compiling region, read the
// name, emit its marker, emit CONST (here+2) pointing at the data
// cell that follows RET, emit RET, emit the zero-valued data cell,
// switch back to interpreting. Net effect on the address stack: none.
func imVariable(c *Compiler) error {
	name, err := c.nextWordToken()
	if err != nil {
		return err
	}
	c.compiling()

	if _, err := c.addWord(core.MarkerCell(name)); err != nil {
		return err
	}
	constAddr := c.here()
	if _, err := c.emitOpArg(core.OpConst, constAddr+2); err != nil {
		return err
	}
	if _, err := c.emitOp(core.OpRet); err != nil {
		return err
	}
	if _, err := c.addWord(core.IntCell(0)); err != nil {
		return err
	}

	c.interpreting()
	return nil
}

func singleOp(c *Compiler, op core.Opcode) error {
	_, err := c.emitOp(op)
	return err
}
