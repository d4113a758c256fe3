// Package render converts an SVG document string into PNG bytes, enforcing
// the strict 8192x8192 dimension limit and owning the process-wide font
// database that backs text rendering.
package render

import (
	"bytes"
	"image/png"
	"sync"

	resvg "github.com/thatoddmailbox/go-resvg"

	"github.com/tobert/scry-mcp/scryerr"
)

const maxDimension = 8192

var (
	fontOptsOnce sync.Once
	fontOpts     *resvg.Options
)

// fontDatabase returns the process-wide, lazily-initialized resvg options
// object carrying the loaded system font database. It is read-only after
// initialization and safe for concurrent use.
func fontDatabase() *resvg.Options {
	fontOptsOnce.Do(func() {
		fontOpts = resvg.NewOptions()
		fontOpts.LoadSystemFonts()
	})
	return fontOpts
}

// SVGToPNG parses svg, rasterizes it at its own natural document size, and
// encodes the result as PNG bytes.
func SVGToPNG(svg string) ([]byte, error) {
	tree, err := resvg.ParseFromData([]byte(svg), fontDatabase())
	if err != nil {
		return nil, scryerr.Newf(scryerr.Render, "SVG parse error: %s", err)
	}

	size := tree.GetImageSize()
	w, h := uint32(size.Width), uint32(size.Height)
	if w == 0 || h == 0 {
		return nil, scryerr.New(scryerr.Render, "SVG has zero dimensions")
	}
	if w > maxDimension || h > maxDimension {
		return nil, scryerr.Newf(scryerr.Render,
			"SVG dimensions %dx%d exceed maximum %dx%d", w, h, maxDimension, maxDimension)
	}

	img := tree.Render(resvg.IdentityTransform(), w, h)
	if img == nil {
		return nil, scryerr.New(scryerr.Render, "Failed to create pixmap")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, scryerr.Newf(scryerr.Render, "PNG encode error: %s", err)
	}

	out := buf.Bytes()
	if len(out) < 4 || !bytes.Equal(out[:4], []byte{0x89, 0x50, 0x4E, 0x47}) {
		return nil, scryerr.New(scryerr.Render, "PNG encode produced no magic bytes")
	}
	return out, nil
}
