package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// colorFuncNames lists every host color primitive name, excluded from the
// persisted scope the same way mathFuncNames is.
var colorFuncNames = map[string]bool{
	"hsl": true, "hsla": true, "rgb": true, "rgba": true,
	"oklch": true, "oklcha": true, "color_mix": true,
	"color_lighten": true, "color_darken": true,
	"color_saturate": true, "color_desaturate": true, "hue_shift": true,
}

func isColorFuncName(name string) bool { return colorFuncNames[name] }

// rgba is an RGB color plus alpha, all in [0,1], used as the common
// currency between hex parsing, OkLab math, and hex formatting.
type rgba struct {
	r, g, b, a float64
}

func (c rgba) clamped() rgba {
	return rgba{clamp01(c.r), clamp01(c.g), clamp01(c.b), clamp01(c.a)}
}

func (c rgba) color() colorful.Color {
	return colorful.Color{R: c.r, G: c.g, B: c.b}
}

// hex formats c as "#rrggbb" if alpha is 1, else "#rrggbbaa".
func (c rgba) hex() string {
	c = c.clamped()
	r := int(math.Round(c.r * 255))
	g := int(math.Round(c.g * 255))
	b := int(math.Round(c.b * 255))
	if c.a >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	a := int(math.Round(c.a * 255))
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
}

// parseHex accepts 3-, 6-, or 8-digit hex color strings, with or without a
// leading '#'.
func parseHex(s string) (rgba, bool) {
	s = strings.TrimPrefix(s, "#")
	expand := func(c byte) (byte, byte) { return c, c }
	hx := func(hi, lo byte) (float64, bool) {
		v, err := strconv.ParseUint(string([]byte{hi, lo}), 16, 8)
		if err != nil {
			return 0, false
		}
		return float64(v) / 255, true
	}

	switch len(s) {
	case 3:
		r1, r2 := expand(s[0])
		g1, g2 := expand(s[1])
		b1, b2 := expand(s[2])
		r, ok1 := hx(r1, r2)
		g, ok2 := hx(g1, g2)
		b, ok3 := hx(b1, b2)
		if !ok1 || !ok2 || !ok3 {
			return rgba{}, false
		}
		return rgba{r, g, b, 1}, true
	case 6:
		r, ok1 := hx(s[0], s[1])
		g, ok2 := hx(s[2], s[3])
		b, ok3 := hx(s[4], s[5])
		if !ok1 || !ok2 || !ok3 {
			return rgba{}, false
		}
		return rgba{r, g, b, 1}, true
	case 8:
		r, ok1 := hx(s[0], s[1])
		g, ok2 := hx(s[2], s[3])
		b, ok3 := hx(s[4], s[5])
		a, ok4 := hx(s[6], s[7])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return rgba{}, false
		}
		return rgba{r, g, b, a}, true
	default:
		return rgba{}, false
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// oklchOf decomposes c's OkLab representation into OkLCh (lightness,
// chroma, hue-in-degrees). go-colorful exposes OkLab directly but not
// OkLCh, so the polar conversion is done here.
func oklchOf(c colorful.Color) (l, chroma, hueDeg float64) {
	l, a, b := c.OkLab()
	chroma = math.Hypot(a, b)
	hueDeg = math.Atan2(b, a) * 180 / math.Pi
	if hueDeg < 0 {
		hueDeg += 360
	}
	return l, chroma, hueDeg
}

func oklchToColor(l, chroma, hueDeg float64) colorful.Color {
	rad := hueDeg * math.Pi / 180
	a := chroma * math.Cos(rad)
	b := chroma * math.Sin(rad)
	return colorful.OkLab(l, a, b)
}

func hslToRGB(h, s, l float64) rgba {
	h = math.Mod(math.Mod(h, 360)+360, 360)
	s = clamp01(s / 100)
	l = clamp01(l / 100)

	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r1, g1, b1 float64
	switch {
	case hp < 1:
		r1, g1, b1 = c, x, 0
	case hp < 2:
		r1, g1, b1 = x, c, 0
	case hp < 3:
		r1, g1, b1 = 0, c, x
	case hp < 4:
		r1, g1, b1 = 0, x, c
	case hp < 5:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	m := l - c/2
	return rgba{r1 + m, g1 + m, b1 + m, 1}
}

// registerColor installs the color host primitives from SPEC_FULL.md §4.C.
func registerColor(vm *goja.Runtime, checkOps func()) {
	invalid := func(input string) string { return fmt.Sprintf("!invalid color: %s", input) }

	vm.Set("hsl", func(call goja.FunctionCall) goja.Value {
		checkOps()
		c := hslToRGB(call.Argument(0).ToFloat(), call.Argument(1).ToFloat(), call.Argument(2).ToFloat())
		return vm.ToValue(c.clamped().hex())
	})
	vm.Set("hsla", func(call goja.FunctionCall) goja.Value {
		checkOps()
		c := hslToRGB(call.Argument(0).ToFloat(), call.Argument(1).ToFloat(), call.Argument(2).ToFloat())
		c.a = clamp01(call.Argument(3).ToFloat())
		return vm.ToValue(c.clamped().hex())
	})
	vm.Set("rgb", func(call goja.FunctionCall) goja.Value {
		checkOps()
		c := rgba{
			r: clamp01(call.Argument(0).ToFloat() / 255),
			g: clamp01(call.Argument(1).ToFloat() / 255),
			b: clamp01(call.Argument(2).ToFloat() / 255),
			a: 1,
		}
		return vm.ToValue(c.hex())
	})
	vm.Set("rgba", func(call goja.FunctionCall) goja.Value {
		checkOps()
		c := rgba{
			r: clamp01(call.Argument(0).ToFloat() / 255),
			g: clamp01(call.Argument(1).ToFloat() / 255),
			b: clamp01(call.Argument(2).ToFloat() / 255),
			a: clamp01(call.Argument(3).ToFloat()),
		}
		return vm.ToValue(c.hex())
	})
	vm.Set("oklch", func(call goja.FunctionCall) goja.Value {
		checkOps()
		col := oklchToColor(call.Argument(0).ToFloat(), call.Argument(1).ToFloat(), call.Argument(2).ToFloat()).Clamped()
		return vm.ToValue(rgba{col.R, col.G, col.B, 1}.hex())
	})
	vm.Set("oklcha", func(call goja.FunctionCall) goja.Value {
		checkOps()
		col := oklchToColor(call.Argument(0).ToFloat(), call.Argument(1).ToFloat(), call.Argument(2).ToFloat()).Clamped()
		a := clamp01(call.Argument(3).ToFloat())
		return vm.ToValue(rgba{col.R, col.G, col.B, a}.hex())
	})
	vm.Set("color_mix", func(call goja.FunctionCall) goja.Value {
		checkOps()
		h1 := call.Argument(0).String()
		h2 := call.Argument(1).String()
		t := call.Argument(2).ToFloat()
		c1, ok1 := parseHex(h1)
		if !ok1 {
			return vm.ToValue(invalid(h1))
		}
		c2, ok2 := parseHex(h2)
		if !ok2 {
			return vm.ToValue(invalid(h2))
		}
		blended := c1.color().BlendOkLab(c2.color(), t).Clamped()
		a := c1.a + (c2.a-c1.a)*t
		return vm.ToValue(rgba{blended.R, blended.G, blended.B, clamp01(a)}.hex())
	})
	vm.Set("color_lighten", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(adjustLightness(call, true))
	})
	vm.Set("color_darken", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(adjustLightness(call, false))
	})
	vm.Set("color_saturate", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(adjustChroma(call, true))
	})
	vm.Set("color_desaturate", func(call goja.FunctionCall) goja.Value {
		checkOps()
		return vm.ToValue(adjustChroma(call, false))
	})
	vm.Set("hue_shift", func(call goja.FunctionCall) goja.Value {
		checkOps()
		input := call.Argument(0).String()
		degrees := call.Argument(1).ToFloat()
		c, ok := parseHex(input)
		if !ok {
			return vm.ToValue(invalid(input))
		}
		l, chroma, hue := oklchOf(c.color())
		hue = math.Mod(math.Mod(hue+degrees, 360)+360, 360)
		out := oklchToColor(l, chroma, hue).Clamped()
		return vm.ToValue(rgba{out.R, out.G, out.B, c.a}.hex())
	})
}

func adjustLightness(call goja.FunctionCall, lighten bool) string {
	input := call.Argument(0).String()
	amount := call.Argument(1).ToFloat()
	c, ok := parseHex(input)
	if !ok {
		return fmt.Sprintf("!invalid color: %s", input)
	}
	l, a, b := c.color().OkLab()
	if lighten {
		l += amount
	} else {
		l -= amount
	}
	l = clamp01(l)
	out := colorful.OkLab(l, a, b).Clamped()
	return rgba{out.R, out.G, out.B, c.a}.hex()
}

func adjustChroma(call goja.FunctionCall, saturate bool) string {
	input := call.Argument(0).String()
	amount := call.Argument(1).ToFloat()
	c, ok := parseHex(input)
	if !ok {
		return fmt.Sprintf("!invalid color: %s", input)
	}
	l, chroma, hue := oklchOf(c.color())
	if saturate {
		chroma += amount
	} else {
		chroma -= amount
	}
	if chroma < 0 {
		chroma = 0
	}
	out := oklchToColor(l, chroma, hue).Clamped()
	return rgba{out.R, out.G, out.B, c.a}.hex()
}
