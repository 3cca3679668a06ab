// Package script evaluates skill formulas as JavaScript expressions on a
// pool of goja VMs. It is the optional alternative to the built-in formula
// grammar for data files that need more than arithmetic.
package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/kasuganosora/arenacore/game/combat"
	"go.uber.org/zap"
)

// ErrTimeout is returned when a script exceeds the execution time limit.
var ErrTimeout = errors.New("script: execution timed out")

// ErrPanic is returned when evaluation panics inside the VM.
var ErrPanic = errors.New("script: uncaught exception")

// ErrNotNumber is returned when a formula does not yield a finite number.
var ErrNotNumber = errors.New("script: result is not a finite number")

// VMPool is a thread-safe pool of pre-initialised goja runtimes.
type VMPool struct {
	pool    chan *goja.Runtime
	timeout time.Duration
	logger  *zap.Logger
}

// NewVMPool creates a VMPool with the given concurrency size and per-script timeout.
func NewVMPool(size int, timeout time.Duration, logger *zap.Logger) *VMPool {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &VMPool{
		pool:    make(chan *goja.Runtime, size),
		timeout: timeout,
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		p.pool <- newSafeVM()
	}
	return p
}

// Run executes prog inside a pooled VM after bind has set its globals.
func (p *VMPool) Run(ctx context.Context, prog *goja.Program, bind func(*goja.Runtime)) (goja.Value, error) {
	select {
	case vm := <-p.pool:
		// returnToPool is cleared by runVM when the VM is tainted by a
		// timeout and must be replaced.
		returnToPool := true
		defer func() {
			if returnToPool {
				p.pool <- vm
			}
		}()
		return p.runVM(vm, prog, bind, &returnToPool)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *VMPool) runVM(vm *goja.Runtime, prog *goja.Program, bind func(*goja.Runtime), returnToPool *bool) (goja.Value, error) {
	if bind != nil {
		bind(vm)
	}

	timer := time.AfterFunc(p.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer func() {
		timer.Stop()
		if *returnToPool {
			vm.ClearInterrupt()
		}
	}()

	var result goja.Value
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = ErrPanic
			}
		}()
		result, runErr = vm.RunProgram(prog)
	}()

	if runErr == nil {
		return result, nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(runErr, &interrupted) {
		*returnToPool = false
		p.pool <- newSafeVM()
		return nil, ErrTimeout
	}
	var ex *goja.Exception
	if errors.As(runErr, &ex) {
		return nil, errors.New(ex.Error())
	}
	return nil, runErr
}

// newSafeVM creates a goja Runtime with host-reaching globals removed and a
// deterministic Math.random.
func newSafeVM() *goja.Runtime {
	vm := goja.New()
	for _, name := range []string{"require", "process", "fetch", "XMLHttpRequest", "eval", "Function"} {
		vm.Set(name, goja.Undefined())
	}
	if m := vm.Get("Math"); m != nil {
		_ = m.ToObject(vm).Set("random", func() float64 { return 0 })
	}
	return vm
}

// FormulaEngine evaluates skill formulas with the caster bound as a and the
// skill as s. It satisfies combat.Evaluator.
type FormulaEngine struct {
	pool    *VMPool
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.RWMutex
	programs map[string]*goja.Program
}

// NewFormulaEngine creates a FormulaEngine backed by a VMPool of size VMs.
func NewFormulaEngine(size int, timeout time.Duration, logger *zap.Logger) *FormulaEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := NewVMPool(size, timeout, logger)
	return &FormulaEngine{
		pool:     pool,
		timeout:  pool.timeout,
		logger:   logger,
		programs: make(map[string]*goja.Program),
	}
}

var _ combat.Evaluator = (*FormulaEngine)(nil)

func (e *FormulaEngine) compile(formula string) (*goja.Program, error) {
	e.mu.RLock()
	prog, ok := e.programs[formula]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}
	prog, err := goja.Compile("formula", "("+formula+")", true)
	if err != nil {
		return nil, fmt.Errorf("script: compile %q: %w", formula, err)
	}
	e.mu.Lock()
	e.programs[formula] = prog
	e.mu.Unlock()
	return prog, nil
}

// Eval evaluates formula against v. An empty formula is 0.
func (e *FormulaEngine) Eval(formula string, v combat.Vars) (float64, error) {
	if formula == "" {
		return 0, nil
	}
	prog, err := e.compile(formula)
	if err != nil {
		return 0, err
	}
	// Waiting for a VM is bounded by the same budget as running one.
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	val, err := e.pool.Run(ctx, prog, func(vm *goja.Runtime) {
		vm.Set("a", map[string]interface{}{
			"str":   v.Strength,
			"def":   v.Defense,
			"spd":   v.Speed,
			"level": v.Level,
			"hp":    v.Health,
			"mp":    v.Mana,
			"mhp":   v.MaxHealth,
			"mmp":   v.MaxMana,
		})
		vm.Set("s", map[string]interface{}{"level": v.SkillLevel})
	})
	if err != nil {
		e.logger.Warn("formula evaluation failed",
			zap.String("formula", truncate(formula, 80)),
			zap.Error(err))
		return 0, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return 0, ErrNotNumber
	}
	out := val.ToFloat()
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, ErrNotNumber
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
