// Package mcp wires the board store, sandbox, and render pipeline into the
// two MCP tools Scry exposes over stdio: whiteboard and whiteboard_list.
// It is the tool-call coordinator from SPEC_FULL.md §4.E, replacing the
// teacher's HTTP-handler package of the same import path.
package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/tobert/scry-mcp/board"
	"github.com/tobert/scry-mcp/codec"
	"github.com/tobert/scry-mcp/render"
	"github.com/tobert/scry-mcp/sandbox"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
	maxDimension  = 8192
	maxCodeLen    = 1_000_000
	snippetLimit  = 200
)

// GalleryURL reports the public URL for a board, or the empty string when
// the gallery is not running.
type GalleryURL func(name string) string

// Server implements the whiteboard / whiteboard_list tools against a board
// store. OutputDir, when non-empty, enables best-effort PNG/SVG file
// output per call.
type Server struct {
	Store      *board.Store
	OutputDir  string
	GalleryURL GalleryURL
	Log        *logrus.Logger
}

// NewServer wires store into a Server ready to be registered with an MCP
// server via Register.
func NewServer(store *board.Store, outputDir string, galleryURL GalleryURL, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{Store: store, OutputDir: outputDir, GalleryURL: galleryURL, Log: log}
}

// WhiteboardInput is the whiteboard tool's parameter shape.
type WhiteboardInput struct {
	Name   string `json:"name" jsonschema:"Name of the board (creates new if it doesn't exist)"`
	Code   string `json:"code" jsonschema:"JavaScript to execute. Call svg('<svg>...</svg>') to set the board's image. Variables persist across calls to the same board. WIDTH and HEIGHT are preset to the board's dimensions."`
	Width  *int   `json:"width,omitempty" jsonschema:"Board width in pixels (default 800)"`
	Height *int   `json:"height,omitempty" jsonschema:"Board height in pixels (default 600)"`
}

// WhiteboardListInput has no parameters; whiteboard_list lists every board.
type WhiteboardListInput struct{}

// WhiteboardOutput and WhiteboardListOutput are unused placeholders: both
// tools build their response content by hand (mixed text/image parts) and
// always return a non-nil *mcp.CallToolResult, which takes precedence over
// structured output marshaling.
type WhiteboardOutput struct{}
type WhiteboardListOutput struct{}

// Register installs the whiteboard and whiteboard_list tools on srv.
func (s *Server) Register(srv *mcpsdk.Server) {
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name: "whiteboard",
		Description: "Execute JavaScript to generate SVG visuals on a named board. Call svg('<svg>...</svg>') " +
			"in your code to set the board's SVG content, which gets rendered to PNG automatically. Variables " +
			"persist between calls to the same board. Returns the rendered PNG image and a gallery URL.",
	}, s.whiteboard)

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "whiteboard_list",
		Description: "List all active boards with their thumbnails, URLs, and metadata.",
	}, s.whiteboardList)
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

func (s *Server) whiteboard(ctx context.Context, _ *mcpsdk.CallToolRequest, in WhiteboardInput) (*mcpsdk.CallToolResult, WhiteboardOutput, error) {
	w := uint32(defaultWidth)
	if in.Width != nil {
		w = uint32(*in.Width)
	}
	h := uint32(defaultHeight)
	if in.Height != nil {
		h = uint32(*in.Height)
	}

	// 1. Validate.
	if err := codec.ValidateName(in.Name); err != nil {
		return errorResult(err.Error()), WhiteboardOutput{}, nil
	}
	if w == 0 || h == 0 {
		return errorResult("Width and height must be greater than zero"), WhiteboardOutput{}, nil
	}
	if w > maxDimension || h > maxDimension {
		return errorResult(fmt.Sprintf("Width and height must be at most %d", maxDimension)), WhiteboardOutput{}, nil
	}
	if len(in.Code) > maxCodeLen {
		return errorResult(fmt.Sprintf("Code too large (%d bytes, max %d)", len(in.Code), maxCodeLen)), WhiteboardOutput{}, nil
	}

	// 2. Get or create board.
	namespace, isNew := s.Store.GetOrCreate(in.Name, w, h)

	// 3. Execute in the sandbox, off the request-dispatch path.
	result, updatedNS, err := dispatchExecute(namespace, in.Code, w, h)
	if err != nil {
		return errorResult(err.Error()), WhiteboardOutput{}, nil
	}

	now := time.Now().UTC()

	// 4. No image produced: commit namespace only, broadcast Updated.
	if result.SVG == nil {
		s.Store.CommitNamespaceOnly(in.Name, updatedNS, now)
		s.Store.Publish(board.Event{BoardName: in.Name, Kind: board.Updated})

		msg := "Code executed successfully but svg() was not called.\n"
		if result.Stdout != "" {
			msg += "\n--- stdout ---\n" + result.Stdout
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}}}, WhiteboardOutput{}, nil
	}

	// 5. Render.
	svgContent := *result.SVG
	pngBytes, err := render.SVGToPNG(svgContent)
	if err != nil {
		return errorResult(fmt.Sprintf("SVG render failed: %s", err)), WhiteboardOutput{}, nil
	}

	// 6. Commit.
	s.Store.Commit(in.Name, svgContent, pngBytes, updatedNS, w, h, now)

	// 8. Broadcast.
	kind := board.Updated
	if isNew {
		kind = board.Created
	}
	s.Store.Publish(board.Event{BoardName: in.Name, Kind: kind})

	// 7. Best-effort file output.
	var pngPath, svgPath string
	if s.OutputDir != "" {
		safe := codec.SanitizeFilename(in.Name)
		pngFile := filepath.Join(s.OutputDir, safe+".png")
		svgFile := filepath.Join(s.OutputDir, safe+".svg")
		if err := os.WriteFile(pngFile, pngBytes, 0o644); err != nil {
			s.Log.WithError(err).Warnf("failed to write %s", pngFile)
		} else {
			pngPath = pngFile
		}
		if err := os.WriteFile(svgFile, []byte(svgContent), 0o644); err != nil {
			s.Log.WithError(err).Warnf("failed to write %s", svgFile)
		} else {
			svgPath = svgFile
		}
	}

	// 9. Build response.
	header := fmt.Sprintf("Board: %s\nSize: %dx%d", in.Name, w, h)
	if s.GalleryURL != nil {
		if url := s.GalleryURL(in.Name); url != "" {
			header += "\nURL: " + url
		}
	}
	if pngPath != "" {
		header += "\nPNG: " + pngPath
	}
	if svgPath != "" {
		header += "\nSVG: " + svgPath
	}

	parts := []string{header}
	if result.Stdout != "" {
		parts = append(parts, "--- stdout ---\n"+result.Stdout)
	}
	parts = append(parts, "--- SVG (snippet) ---\n"+truncateSVG(svgContent))

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.ImageContent{Data: base64.StdEncoding.EncodeToString(pngBytes), MIMEType: "image/png"},
			&mcpsdk.TextContent{Text: strings.Join(parts, "\n\n")},
		},
	}, WhiteboardOutput{}, nil
}

func (s *Server) whiteboardList(ctx context.Context, _ *mcpsdk.CallToolRequest, _ WhiteboardListInput) (*mcpsdk.CallToolResult, WhiteboardListOutput, error) {
	views := s.Store.ListSortedBy(board.SortCreatedAsc)
	if len(views) == 0 {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "No boards yet. Use the whiteboard tool to create one."}},
		}, WhiteboardListOutput{}, nil
	}

	var content []mcpsdk.Content
	for _, v := range views {
		info := fmt.Sprintf(
			"Board: %s\nSize: %dx%d\nCreated: %s\nUpdated: %s\nHistory: %d snapshots",
			v.Name, v.Width, v.Height,
			v.CreatedAt.Format("2006-01-02 15:04:05 UTC"),
			v.UpdatedAt.Format("2006-01-02 15:04:05 UTC"),
			v.HistoryLen,
		)
		if s.GalleryURL != nil {
			if url := s.GalleryURL(v.Name); url != "" {
				info += "\nURL: " + url
			}
		}
		content = append(content, &mcpsdk.TextContent{Text: info})
		if len(v.PNG) > 0 {
			content = append(content, &mcpsdk.ImageContent{
				Data:     base64.StdEncoding.EncodeToString(v.PNG),
				MIMEType: "image/png",
			})
		}
	}
	return &mcpsdk.CallToolResult{Content: content}, WhiteboardListOutput{}, nil
}

// dispatchExecute runs the sandbox on a separate goroutine and waits for its
// outcome; the calling handler goroutine stays blocked until the script
// finishes or is stopped by a resource cap.
func dispatchExecute(ns *sandbox.Namespace, code string, w, h uint32) (sandbox.Result, *sandbox.Namespace, error) {
	type outcome struct {
		result sandbox.Result
		ns     *sandbox.Namespace
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, n, err := sandbox.Execute(ns, code, w, h)
		ch <- outcome{r, n, err}
	}()
	o := <-ch
	return o.result, o.ns, o.err
}

// truncateSVG returns svg unchanged if it's at most snippetLimit bytes,
// otherwise a UTF-8-safe prefix of at most snippetLimit bytes with "..."
// appended.
func truncateSVG(svg string) string {
	if len(svg) <= snippetLimit {
		return svg
	}
	end := snippetLimit
	for end > 0 && !utf8.RuneStart(svg[end]) {
		end--
	}
	return svg[:end] + "..."
}
