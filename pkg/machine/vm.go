// Package machine implements the two-stack virtual machine:
// parameterised instructions over a data stack, a return stack, and a
// shared core memory of tagged cells.
package machine

import (
	"fmt"

	"github.com/jkirk/forthtrace/pkg/core"
)

// Config sizes the VM's fixed allocations. New starts from the
// package defaults; a field keeps its default unless an Option sets it.
type Config struct {
	CoreSize      int
	DataSize      int
	ReturnSize    int
	StackElements int // how many cells the trace draws; visual only
}

// Option configures a VM at construction time, following the
// functional-options idiom.
type Option func(*Config)

// WithCoreSize overrides the number of cells in core memory.
func WithCoreSize(n int) Option { return func(c *Config) { c.CoreSize = n } }

// WithDataSize overrides the data stack capacity.
func WithDataSize(n int) Option { return func(c *Config) { c.DataSize = n } }

// WithReturnSize overrides the return stack capacity.
func WithReturnSize(n int) Option { return func(c *Config) { c.ReturnSize = n } }

// WithStackElements overrides how many stack cells a trace sink draws.
func WithStackElements(n int) Option { return func(c *Config) { c.StackElements = n } }

const (
	DefaultCoreSize      = 1000
	DefaultDataSize      = 10
	DefaultReturnSize    = 10
	DefaultStackElements = 10
)

func defaultConfig() Config {
	return Config{
		CoreSize:      DefaultCoreSize,
		DataSize:      DefaultDataSize,
		ReturnSize:    DefaultReturnSize,
		StackElements: DefaultStackElements,
	}
}

// VM is the stack machine: core memory plus the data and return
// stacks and the program counter.
type VM struct {
	Core   core.Memory
	Data   *Stack
	Return *Stack
	PC     int

	cfg Config
}

// New allocates a VM with empty core memory. Compilation (pkg/compiler)
// fills Core and sets the entry PC before Run/Step is called.
func New(opts ...Option) *VM {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &VM{
		Core:   core.NewMemory(cfg.CoreSize),
		Data:   NewStack("data", cfg.DataSize),
		Return: NewStack("return", cfg.ReturnSize),
		PC:     0,
		cfg:    cfg,
	}
}

// Config returns the VM's active configuration.
func (vm *VM) Config() Config { return vm.cfg }

// Step executes exactly one instruction at Core[PC]. It returns
// running=true to keep stepping, running=false with err=nil on the
// single sanctioned halt (the entrypoint's closing RET underflowing
// an already-empty return stack), or running=false with a non-nil
// err on any other fatal condition.
func (vm *VM) Step() (running bool, err error) {
	cell, err := vm.Core.Load(vm.PC)
	if err != nil {
		return false, err
	}
	if cell.Kind != core.KindInstr {
		return false, fmt.Errorf("pc @%d does not address an instruction cell: %v", vm.PC, cell)
	}
	ins := cell.Instr
	vm.PC++

	switch ins.Op {
	case core.OpConst:
		if err := vm.Data.Push(ins.Arg); err != nil {
			return false, err
		}
	case core.OpStk:
		v, err := vm.Data.Peek(ins.Arg)
		if err != nil {
			return false, err
		}
		if err := vm.Data.Push(v); err != nil {
			return false, err
		}
	case core.OpRstk:
		v, err := vm.Return.Peek(ins.Arg)
		if err != nil {
			return false, err
		}
		if err := vm.Data.Push(v); err != nil {
			return false, err
		}
	case core.OpDrop:
		if _, err := vm.Data.Pop(); err != nil {
			return false, err
		}
	case core.OpRdrop:
		if _, err := vm.Return.Pop(); err != nil {
			return false, err
		}
	case core.OpSwap:
		if err := vm.Data.Swap(); err != nil {
			return false, err
		}
	case core.OpRswap:
		if err := vm.Return.Swap(); err != nil {
			return false, err
		}
	case core.OpStr:
		v, err := vm.Data.Pop()
		if err != nil {
			return false, err
		}
		if err := vm.Return.Push(v); err != nil {
			return false, err
		}
	case core.OpRts:
		v, err := vm.Return.Pop()
		if err != nil {
			return false, err
		}
		if err := vm.Data.Push(v); err != nil {
			return false, err
		}
	case core.OpLoad:
		addr, err := vm.Data.Pop()
		if err != nil {
			return false, err
		}
		cell, err := vm.Core.Load(addr)
		if err != nil {
			return false, err
		}
		if err := vm.Data.Push(cell.Int); err != nil {
			return false, err
		}
	case core.OpStore:
		addr, err := vm.Data.Pop()
		if err != nil {
			return false, err
		}
		v, err := vm.Data.Pop()
		if err != nil {
			return false, err
		}
		if err := vm.Core.Store(addr, core.IntCell(v)); err != nil {
			return false, err
		}
	case core.OpAdd:
		if err := vm.binop(func(a, b int) int { return a + b }); err != nil {
			return false, err
		}
	case core.OpSub:
		if err := vm.binop(func(a, b int) int { return a - b }); err != nil {
			return false, err
		}
	case core.OpAnd:
		if err := vm.binop(func(a, b int) int { return a & b }); err != nil {
			return false, err
		}
	case core.OpOr:
		if err := vm.binop(func(a, b int) int { return a | b }); err != nil {
			return false, err
		}
	case core.OpNot:
		v, err := vm.Data.Pop()
		if err != nil {
			return false, err
		}
		if err := vm.Data.Push(^v); err != nil {
			return false, err
		}
	case core.OpEqu:
		if err := vm.cmpop(func(a, b int) bool { return a == b }); err != nil {
			return false, err
		}
	case core.OpGtr:
		if err := vm.cmpop(func(a, b int) bool { return a > b }); err != nil {
			return false, err
		}
	case core.OpLtn:
		if err := vm.cmpop(func(a, b int) bool { return a < b }); err != nil {
			return false, err
		}
	case core.OpJump:
		vm.PC = ins.Arg
	case core.OpJumpz:
		v, err := vm.Data.Pop()
		if err != nil {
			return false, err
		}
		if v == 0 {
			vm.PC = ins.Arg
		}
	case core.OpCall:
		if err := vm.Return.Push(vm.PC); err != nil {
			return false, err
		}
		vm.PC = ins.Arg
	case core.OpRet:
		if vm.Return.Ptr() < 0 {
			// The sanctioned terminal underflow: the synthetic
			// entrypoint's closing RET has nothing to return to
			// because it was never reached via CALL.
			return false, nil
		}
		addr, err := vm.Return.Pop()
		if err != nil {
			return false, err
		}
		vm.PC = addr
	default:
		return false, fmt.Errorf("unknown opcode %v @%d", ins.Op, vm.PC-1)
	}
	return true, nil
}

func (vm *VM) binop(f func(a, b int) int) error {
	b, err := vm.Data.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Data.Pop()
	if err != nil {
		return err
	}
	return vm.Data.Push(f(a, b))
}

func (vm *VM) cmpop(f func(a, b int) bool) error {
	b, err := vm.Data.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Data.Pop()
	if err != nil {
		return err
	}
	if f(a, b) {
		return vm.Data.Push(-1)
	}
	return vm.Data.Push(0)
}

// Run steps the VM to completion: until the sanctioned halt or a
// fatal error.
func (vm *VM) Run() error {
	for {
		running, err := vm.Step()
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
	}
}
