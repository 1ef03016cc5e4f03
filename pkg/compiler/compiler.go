// Package compiler implements the one-pass compiler driver: it
// tokenizes a Forth source string and emits instructions into a VM's
// core memory, dispatching each token to a literal, a call, or an
// immediate-word macro.
package compiler

import (
	"fmt"

	"github.com/jkirk/forthtrace/pkg/core"
	"github.com/jkirk/forthtrace/pkg/lexer"
	"github.com/jkirk/forthtrace/pkg/machine"
)

// DefaultInterpSize is the interpreting region's cell count; it is
// not one of the externally-recognised configuration options, since
// top-level fragments are expected to be small.
const DefaultInterpSize = 100

// EntryWord is the synthetic word whose body is the relocated
// contents of the interpreting region.
const EntryWord = "[entrypoint]"

// Option configures the compiler's VM allocation sizes.
type Option func(*options)

type options struct {
	machine.Config
	InterpSize int
}

func defaultOptions() options {
	return options{
		Config: machine.Config{
			CoreSize:      machine.DefaultCoreSize,
			DataSize:      machine.DefaultDataSize,
			ReturnSize:    machine.DefaultReturnSize,
			StackElements: machine.DefaultStackElements,
		},
		InterpSize: DefaultInterpSize,
	}
}

// WithCoreSize overrides core memory's cell count.
func WithCoreSize(n int) Option { return func(o *options) { o.CoreSize = n } }

// WithDataSize overrides the data stack capacity.
func WithDataSize(n int) Option { return func(o *options) { o.DataSize = n } }

// WithReturnSize overrides the return stack capacity.
func WithReturnSize(n int) Option { return func(o *options) { o.ReturnSize = n } }

// WithStackElements overrides how many stack cells a trace sink draws.
func WithStackElements(n int) Option { return func(o *options) { o.StackElements = n } }

// WithInterpSize overrides the interpreting region's cell count.
func WithInterpSize(n int) Option { return func(o *options) { o.InterpSize = n } }

// region selects which cursor add-word targets; exactly one is active
// at any compile moment.
type region int

const (
	regionCompiling region = iota
	regionInterpreting
)

// Compiler holds the one-pass compile state: the tokenizer, the two
// emission regions, their cursors, the dictionary (embedded in the
// compiling region itself), and the compile-time address stack
// immediate words use to patch forward/backward jump targets.
type Compiler struct {
	lex *lexer.Lexer

	vm     *machine.VM // its Core is the compiling region
	interp core.Memory // the interpreting region

	hereCom int
	hereInt int
	active  region

	addrStack []int
}

// Compile tokenizes and compiles source, returning a VM whose core
// memory holds the base ROM, every colon-defined word, and the
// spliced entrypoint, with PC already set to run it.
func Compile(source string, opts ...Option) (*machine.VM, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	vm := machine.New(
		machine.WithCoreSize(cfg.CoreSize),
		machine.WithDataSize(cfg.DataSize),
		machine.WithReturnSize(cfg.ReturnSize),
		machine.WithStackElements(cfg.StackElements),
	)

	c := &Compiler{
		lex:    lexer.New(source),
		vm:     vm,
		interp: core.NewMemory(cfg.InterpSize),
		active: regionInterpreting,
	}

	if err := c.installROM(); err != nil {
		return nil, err
	}

	if err := c.run(); err != nil {
		return nil, err
	}

	if len(c.addrStack) != 0 {
		return nil, UnbalancedControlError{HereCom: c.hereCom, HereInt: c.hereInt, Pending: len(c.addrStack)}
	}

	if err := c.spliceEntrypoint(); err != nil {
		return nil, err
	}

	addr, found := c.findWord(EntryWord)
	if !found {
		return nil, fmt.Errorf("compiler: %s marker missing after splice", EntryWord)
	}
	vm.PC = addr + 1

	return vm, nil
}

// run is the compiler driver's main loop: read a token, compile it,
// repeat until the source is exhausted.
func (c *Compiler) run() error {
	for {
		tok, present := c.lex.Word()
		if !present {
			return nil
		}
		if err := c.compileToken(tok); err != nil {
			return err
		}
	}
}

func (c *Compiler) compileToken(tok lexer.Token) error {
	if tok.IsInt {
		return c.emitConst(tok.Int)
	}

	if addr, found := c.findWord(tok.Word); found {
		return c.emitCall(addr + 1)
	}
	if fn, ok := immediateWords[tok.Word]; ok {
		return fn(c)
	}
	return UnknownWordError{Word: tok.Word, HereCom: c.hereCom, HereInt: c.hereInt}
}

// compiling / interpreting switch the active region.
func (c *Compiler) compiling()    { c.active = regionCompiling }
func (c *Compiler) interpreting() { c.active = regionInterpreting }

// here returns the active region's current cursor address. Addresses
// in the interpreting region are relative to that region alone until
// splicing relocates them; callers must not mix the two address
// spaces before splice.
func (c *Compiler) here() int {
	if c.active == regionCompiling {
		return c.hereCom
	}
	return c.hereInt
}

// addWord writes cell at the active cursor and advances it, failing
// with OverflowError if the active region is full.
func (c *Compiler) addWord(cell core.Cell) (addr int, err error) {
	if c.active == regionCompiling {
		if c.hereCom >= c.vm.Core.Size() {
			return 0, core.OverflowError{Region: "compiling", Here: c.hereCom, Cap: c.vm.Core.Size()}
		}
		addr = c.hereCom
		if err := c.vm.Core.Store(addr, cell); err != nil {
			return 0, err
		}
		c.hereCom++
		return addr, nil
	}
	if c.hereInt >= c.interp.Size() {
		return 0, core.OverflowError{Region: "interpreting", Here: c.hereInt, Cap: c.interp.Size()}
	}
	addr = c.hereInt
	if err := c.interp.Store(addr, cell); err != nil {
		return 0, err
	}
	c.hereInt++
	return addr, nil
}

func (c *Compiler) emitConst(n int) error {
	_, err := c.addWord(core.InstrCell(core.OpConst, n))
	return err
}

func (c *Compiler) emitCall(addr int) error {
	_, err := c.addWord(core.InstrCell(core.OpCall, addr))
	return err
}

func (c *Compiler) emitOp(op core.Opcode) (int, error) {
	return c.addWord(core.InstrCell(op, 0))
}

func (c *Compiler) emitOpArg(op core.Opcode, arg int) (int, error) {
	return c.addWord(core.InstrCell(op, arg))
}

// patch overwrites the argument of an already-emitted instruction at
// addr in the active region. Both regions number their cells from 0,
// so an address alone does not say which region it came from; callers
// rely on every immediate word patching within the region it was
// emitting into at the time.
func (c *Compiler) patch(addr int, arg int) error {
	if c.active == regionCompiling {
		return c.vm.Core.PatchArg(addr, arg)
	}
	return c.interp.PatchArg(addr, arg)
}

func (c *Compiler) pushAddr(a int)     { c.addrStack = append(c.addrStack, a) }
func (c *Compiler) popAddr() (int, bool) {
	if len(c.addrStack) == 0 {
		return 0, false
	}
	a := c.addrStack[len(c.addrStack)-1]
	c.addrStack = c.addrStack[:len(c.addrStack)-1]
	return a, true
}

// findWord scans the compiling region from hereCom-1 down to 0 for a
// marker cell named name. Base ROM entries live in the same region,
// so later definitions shadow earlier ones with the same name because
// the scan runs backward.
func (c *Compiler) findWord(name string) (addr int, found bool) {
	for addr := c.hereCom - 1; addr >= 0; addr-- {
		cell, err := c.vm.Core.Load(addr)
		if err != nil {
			return 0, false
		}
		if cell.Kind == core.KindMarker && cell.Marker == name {
			return addr, true
		}
	}
	return 0, false
}

// spliceEntrypoint implements append-immediate: switch to the
// compiling region, emit the [entrypoint] marker, copy every
// interpreting-region instruction across (rewriting JUMP/JUMPZ
// arguments to land inside the entrypoint body), then close with RET.
func (c *Compiler) spliceEntrypoint() error {
	c.compiling()
	if _, err := c.addWord(core.MarkerCell(EntryWord)); err != nil {
		return err
	}
	base := c.hereCom

	for i := 0; i < c.hereInt; i++ {
		cell, err := c.interp.Load(i)
		if err != nil {
			return err
		}
		if cell.Kind == core.KindInstr && (cell.Instr.Op == core.OpJump || cell.Instr.Op == core.OpJumpz) {
			cell.Instr.Arg += base
		}
		if _, err := c.addWord(cell); err != nil {
			return err
		}
	}

	_, err := c.emitOp(core.OpRet)
	return err
}
