package sandbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/scry-mcp/scryerr"
)

func TestExecuteSVGCallback(t *testing.T) {
	ns := NewNamespace()
	res, newNS, err := Execute(ns, `svg("<svg/>")`, 800, 600)
	require.NoError(t, err)
	require.NotNil(t, res.SVG)
	assert.Equal(t, "<svg/>", *res.SVG)
	assert.NotNil(t, newNS)
}

func TestExecutePrintCapturesStdout(t *testing.T) {
	ns := NewNamespace()
	res, _, err := Execute(ns, `print(sqrt(16))`, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, "4\n", res.Stdout)
}

func TestExecuteNamespacePersistence(t *testing.T) {
	ns := NewNamespace()
	_, ns2, err := Execute(ns, `var counter = 1`, 800, 600)
	require.NoError(t, err)
	require.NotNil(t, ns2)

	res, _, err := Execute(ns2, "counter = counter + 1\nprint(counter)", 800, 600)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "2")
}

func TestExecuteCompileError(t *testing.T) {
	ns := NewNamespace()
	_, _, err := Execute(ns, "this is not valid javascript {{{", 800, 600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Compile error")
}

func TestExecuteNULByteRejected(t *testing.T) {
	ns := NewNamespace()
	_, _, err := Execute(ns, "print(1)\x00", 800, 600)
	require.Error(t, err)
}

func TestExecuteRuntimeErrorHasNoHostEscape(t *testing.T) {
	ns := NewNamespace()
	_, _, err := Execute(ns, "undefinedFunctionCall()", 800, 600)
	require.Error(t, err)
}

func TestExecuteWidthHeightInjected(t *testing.T) {
	ns := NewNamespace()
	res, _, err := Execute(ns, "print(WIDTH); print(HEIGHT)", 123, 456)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "123", lines[0])
	assert.Equal(t, "456", lines[1])
}

func TestColorPrimitivesProduceHex(t *testing.T) {
	ns := NewNamespace()
	res, _, err := Execute(ns, `print(rgb(255,0,0)); print(hsl(0,100,50)); print(color_mix("#ff0000","#0000ff",0.5))`, 800, 600)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "#"), "expected hex output, got %q", l)
	}
}

func TestExecuteUnboundedLoopWithHostCallsHitsOperationCap(t *testing.T) {
	ns := NewNamespace()
	start := time.Now()
	_, _, err := Execute(ns, "while (true) { print(1) }", 800, 600)
	elapsed := time.Since(start)

	require.Error(t, err)
	kind, ok := scryerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, scryerr.ScriptRuntime, kind)
	assert.Contains(t, err.Error(), "operation limit exceeded")
	assert.Less(t, elapsed, watchdogTimeout, "host-call counter should trip before the watchdog does")
}

func TestExecuteUnboundedLoopWithNoHostCallsHitsWatchdog(t *testing.T) {
	ns := NewNamespace()
	start := time.Now()
	_, _, err := Execute(ns, "while (true) {}", 800, 600)
	elapsed := time.Since(start)

	require.Error(t, err)
	kind, ok := scryerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, scryerr.ScriptRuntime, kind)
	assert.Less(t, elapsed, watchdogTimeout+2*time.Second, "watchdog interrupt should bound runtime")
}

func TestColorMixInvalidHex(t *testing.T) {
	ns := NewNamespace()
	res, _, err := Execute(ns, `print(color_mix("not-a-color", "#000000", 0.5))`, 800, 600)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "!invalid color:")
}
