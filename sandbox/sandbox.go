// Package sandbox runs one user-supplied script snippet inside a
// restricted, resource-capped JavaScript runtime and reports the single
// image it produced (if any) together with captured stdout. It is the
// safety-critical core of the board store: user code never touches the
// filesystem, a socket, or another process, because the goja runtime
// backing it exposes no such primitives in the first place.
package sandbox

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/tobert/scry-mcp/scryerr"
)

const (
	maxOperations   = 2_000_000
	maxCallDepth    = 32
	maxStringSize   = 1_000_000
	maxSeqLen       = 10_000
	maxMapSize      = 1_000
	watchdogTimeout = 5 * time.Second
)

// Namespace is the persisted variable scope of one board's script
// environment. It is a plain owned value rather than a reference-counted
// interpreter handle: goja carries no attachment constraint analogous to a
// single interpreter lock, so there is nothing to share beyond copying the
// exported values between executions.
type Namespace struct {
	Scope map[string]any
}

// NewNamespace returns an empty namespace, ready for a board's first
// execution.
func NewNamespace() *Namespace {
	return &Namespace{Scope: map[string]any{}}
}

// Result is what one execution produced.
type Result struct {
	// SVG is the content passed to svg(), or nil if svg() was never called.
	SVG *string
	// Stdout is everything passed to print(), each value followed by a
	// newline.
	Stdout string
}

// hostNames are the primitives registered on every runtime; they're
// excluded when extracting the post-execution scope so constants and
// functions never leak into persisted state.
var hostNames = map[string]bool{
	"WIDTH": true, "HEIGHT": true, "svg": true, "print": true,
}

// Execute compiles and runs code against ns, returning the produced result
// and a fresh namespace holding the post-execution scope. ns is never
// mutated; on any error the returned namespace is nil and the board's
// state must not be committed.
func Execute(ns *Namespace, code string, width, height uint32) (Result, *Namespace, error) {
	if strings.IndexByte(code, 0) >= 0 {
		return Result{}, nil, scryerr.New(scryerr.Validation, "code contains a NUL byte")
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallDepth)

	var stdout strings.Builder
	var svgContent *string
	opCount := 0

	checkOps := func() {
		opCount++
		if opCount > maxOperations {
			panic(vm.ToValue(fmt.Sprintf("operation limit exceeded (%d max)", maxOperations)))
		}
	}

	vm.Set("svg", func(call goja.FunctionCall) goja.Value {
		checkOps()
		content := call.Argument(0).String()
		if len(content) > maxStringSize {
			content = content[:maxStringSize]
		}
		svgContent = &content
		return goja.Undefined()
	})

	vm.Set("print", func(call goja.FunctionCall) goja.Value {
		checkOps()
		stdout.WriteString(call.Argument(0).String())
		stdout.WriteByte('\n')
		return goja.Undefined()
	})

	registerMath(vm, checkOps)
	registerColor(vm, checkOps)

	// WIDTH and HEIGHT are non-writable, so user code cannot reassign them.
	_ = vm.GlobalObject().DefineDataProperty("WIDTH", vm.ToValue(width), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = vm.GlobalObject().DefineDataProperty("HEIGHT", vm.ToValue(height), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	for name, value := range ns.Scope {
		if hostNames[name] {
			continue
		}
		vm.Set(name, value)
	}

	prog, err := goja.Compile("board.js", code, false)
	if err != nil {
		return Result{Stdout: stdout.String()}, nil,
			scryerr.Newf(scryerr.ScriptCompile, "Compile error: %s", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(watchdogTimeout):
			vm.Interrupt(fmt.Sprintf("operation limit exceeded (%d max)", maxOperations))
		case <-done:
		}
	}()

	runErr := runProgram(vm, prog)
	close(done)

	if runErr != nil {
		msg := runErr.Error()
		if stdout.Len() > 0 {
			msg = fmt.Sprintf("--- stdout ---\n%s\n--- error ---\n%s", stdout.String(), msg)
		}
		return Result{}, nil, scryerr.New(scryerr.ScriptRuntime, msg)
	}

	newScope := map[string]any{}
	global := vm.GlobalObject()
	for _, name := range global.Keys() {
		if hostNames[name] || isReservedName(name) {
			continue
		}
		val := global.Get(name)
		if val == nil || goja.IsUndefined(val) {
			continue
		}
		newScope[name] = val.Export()
	}
	if len(newScope) > maxMapSize {
		// Deterministically keep the first maxMapSize keys in sorted
		// order rather than an arbitrary map-iteration-order subset.
		newScope = truncateScope(newScope, maxMapSize)
	}

	return Result{SVG: svgContent, Stdout: stdout.String()}, &Namespace{Scope: newScope}, nil
}

// runProgram executes prog, converting any panic (including the
// operation-cap panic raised by checkOps, and goja's own stack-overflow
// panics) into a plain error so no untrusted-input panic escapes the
// sandbox boundary.
func runProgram(vm *goja.Runtime, prog *goja.Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	_, err = vm.RunProgram(prog)
	return err
}

func isReservedName(name string) bool {
	switch name {
	case "Math", "JSON", "Object", "Array", "String", "Number", "Boolean",
		"Date", "RegExp", "Error", "TypeError", "RangeError", "SyntaxError",
		"ReferenceError", "EvalError", "URIError", "Function", "Symbol",
		"console", "globalThis", "undefined", "NaN", "Infinity":
		return true
	default:
		return isColorFuncName(name) || isMathFuncName(name)
	}
}

func truncateScope(scope map[string]any, limit int) map[string]any {
	keys := make([]string, 0, len(scope))
	for k := range scope {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, limit)
	for i, k := range keys {
		if i >= limit {
			break
		}
		out[k] = scope[k]
	}
	return out
}
