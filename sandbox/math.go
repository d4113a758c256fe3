package sandbox

import (
	"math"

	"github.com/dop251/goja"
)

// mathFuncNames lists every host math/conversion primitive name, used to
// keep them out of the persisted scope extracted after execution.
var mathFuncNames = map[string]bool{
	"sin": true, "cos": true, "tan": true, "asin": true, "acos": true,
	"atan": true, "atan2": true, "sqrt": true, "abs_f": true, "floor": true,
	"ceil": true, "round": true, "min_f": true, "max_f": true, "pow": true,
	"exp": true, "ln": true, "log2": true, "log10": true, "sinh": true,
	"cosh": true, "tanh": true, "hypot": true, "lerp": true, "clamp": true,
	"degrees": true, "radians": true, "fract": true, "signum": true,
	"rem_euclid": true, "copysign": true, "PI": true, "TAU": true, "E": true,
	"to_float": true, "to_int": true,
}

func isMathFuncName(name string) bool { return mathFuncNames[name] }

// registerMath installs the math helper and conversion primitives from
// SPEC_FULL.md §4.C onto vm. checkOps is invoked once per call to keep
// host-function traffic under the operation-cap watchdog.
func registerMath(vm *goja.Runtime, checkOps func()) {
	unary := func(f func(float64) float64) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			checkOps()
			return vm.ToValue(f(call.Argument(0).ToFloat()))
		}
	}
	binary := func(f func(a, b float64) float64) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			checkOps()
			return vm.ToValue(f(call.Argument(0).ToFloat(), call.Argument(1).ToFloat()))
		}
	}

	vm.Set("sin", unary(math.Sin))
	vm.Set("cos", unary(math.Cos))
	vm.Set("tan", unary(math.Tan))
	vm.Set("asin", unary(math.Asin))
	vm.Set("acos", unary(math.Acos))
	vm.Set("atan", unary(math.Atan))
	vm.Set("atan2", binary(math.Atan2))
	vm.Set("sqrt", unary(math.Sqrt))
	vm.Set("abs_f", unary(math.Abs))
	vm.Set("floor", unary(math.Floor))
	vm.Set("ceil", unary(math.Ceil))
	vm.Set("round", unary(math.Round))
	vm.Set("min_f", binary(math.Min))
	vm.Set("max_f", binary(math.Max))
	vm.Set("pow", binary(math.Pow))
	vm.Set("exp", unary(math.Exp))
	vm.Set("ln", unary(math.Log))
	vm.Set("log2", unary(math.Log2))
	vm.Set("log10", unary(math.Log10))
	vm.Set("sinh", unary(math.Sinh))
	vm.Set("cosh", unary(math.Cosh))
	vm.Set("tanh", unary(math.Tanh))
	vm.Set("hypot", binary(math.Hypot))
	vm.Set("copysign", binary(math.Copysign))
	vm.Set("rem_euclid", binary(func(a, b float64) float64 {
		r := math.Mod(a, b)
		if r < 0 {
			r += math.Abs(b)
		}
		return r
	}))
	vm.Set("degrees", unary(func(x float64) float64 { return x * 180 / math.Pi }))
	vm.Set("radians", unary(func(x float64) float64 { return x * math.Pi / 180 }))
	vm.Set("fract", unary(func(x float64) float64 { return x - math.Floor(x) }))
	vm.Set("signum", unary(func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	}))
	vm.Set("lerp", func(call goja.FunctionCall) goja.Value {
		checkOps()
		a := call.Argument(0).ToFloat()
		b := call.Argument(1).ToFloat()
		t := call.Argument(2).ToFloat()
		return vm.ToValue(a + (b-a)*t)
	})
	vm.Set("clamp", func(call goja.FunctionCall) goja.Value {
		checkOps()
		x := call.Argument(0).ToFloat()
		lo := call.Argument(1).ToFloat()
		hi := call.Argument(2).ToFloat()
		switch {
		case x < lo:
			return vm.ToValue(lo)
		case x > hi:
			return vm.ToValue(hi)
		default:
			return vm.ToValue(x)
		}
	})

	vm.Set("PI", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(math.Pi)
	})
	vm.Set("TAU", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(2 * math.Pi)
	})
	vm.Set("E", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(math.E)
	})

	vm.Set("to_float", unary(func(x float64) float64 { return x }))
	vm.Set("to_int", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(math.Trunc(call.Argument(0).ToFloat()))
	})
}
