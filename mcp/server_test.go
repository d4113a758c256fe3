package mcp

import (
	"context"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/scry-mcp/board"
)

func textOf(t *testing.T, content []mcpsdk.Content, i int) string {
	t.Helper()
	tc, ok := content[i].(*mcpsdk.TextContent)
	require.True(t, ok, "content[%d] is not TextContent", i)
	return tc.Text
}

func newTestServer() *Server {
	return NewServer(board.NewStore(nil), "", nil, nil)
}

func TestWhiteboardCreatesRedRect(t *testing.T) {
	s := newTestServer()
	ch, unsubscribe := s.Store.Subscribe()
	defer unsubscribe()

	res, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{
		Name: "demo",
		Code: `svg("<svg xmlns='http://www.w3.org/2000/svg' width='10' height='10'><rect width='10' height='10' fill='red'/></svg>")`,
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 2)

	img, ok := res.Content[0].(*mcpsdk.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)

	assert.Contains(t, textOf(t, res.Content, 1), "Board: demo")

	select {
	case ev := <-ch:
		assert.Equal(t, "demo", ev.BoardName)
		assert.Equal(t, board.Created, ev.Kind)
	default:
		t.Fatal("expected a Created event")
	}
}

func TestWhiteboardRepeatCallPushesHistory(t *testing.T) {
	s := newTestServer()
	code := `svg("<svg xmlns='http://www.w3.org/2000/svg' width='5' height='5'><rect width='5' height='5' fill='blue'/></svg>")`

	_, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{Name: "repeat", Code: code})
	require.NoError(t, err)

	_, _, err = s.whiteboard(context.Background(), nil, WhiteboardInput{Name: "repeat", Code: code})
	require.NoError(t, err)

	view, ok := s.Store.ReadSnapshot("repeat")
	require.True(t, ok)
	assert.Equal(t, 1, view.HistoryLen)
}

func TestWhiteboardNamespacePersistsAcrossCalls(t *testing.T) {
	s := newTestServer()

	_, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{Name: "counter", Code: "var counter = 1"})
	require.NoError(t, err)

	res, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{
		Name: "counter",
		Code: "counter = counter + 1\nprint(counter)",
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res.Content, 0), "2")
}

func TestWhiteboardRejectsBadName(t *testing.T) {
	s := newTestServer()
	res, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{Name: "bad/name", Code: "print(1)"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestWhiteboardRejectsOversizeDimensions(t *testing.T) {
	s := newTestServer()
	huge := 100000
	res, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{Name: "big", Code: "print(1)", Width: &huge})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res.Content, 0), "at most")
}

func TestWhiteboardListEmpty(t *testing.T) {
	s := newTestServer()
	res, _, err := s.whiteboardList(context.Background(), nil, WhiteboardListInput{})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res.Content, 0), "No boards yet")
}

func TestWhiteboardListShowsCommittedBoard(t *testing.T) {
	s := newTestServer()
	_, _, err := s.whiteboard(context.Background(), nil, WhiteboardInput{
		Name: "gallery-entry",
		Code: `svg("<svg xmlns='http://www.w3.org/2000/svg' width='4' height='4'><rect width='4' height='4' fill='green'/></svg>")`,
	})
	require.NoError(t, err)

	res, _, err := s.whiteboardList(context.Background(), nil, WhiteboardListInput{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Content), 2)
	assert.Contains(t, textOf(t, res.Content, 0), "gallery-entry")
	_, ok := res.Content[1].(*mcpsdk.ImageContent)
	assert.True(t, ok)
}

func TestTruncateSVGBoundary(t *testing.T) {
	short := "<svg/>"
	assert.Equal(t, short, truncateSVG(short))

	long := ""
	for i := 0; i < 300; i++ {
		long += "x"
	}
	out := truncateSVG(long)
	assert.True(t, len(out) < len(long))
	assert.Contains(t, out, "...")
}
