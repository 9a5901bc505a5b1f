// Package render rasterizes short text into square PNG images suitable for
// custom emoji items. Fonts are picked from whatever truetype files the host
// has; when none are found a builtin bitmap face keeps rendering working.
package render

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	canvasSize = 512
	maxTextW   = 460.0
)

// Background modes selectable in the adaptive flow.
const (
	BackgroundNone        = "none"
	BackgroundTranslucent = "translucent"
	BackgroundOnly        = "background_only"
)

var fontCandidates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Bold.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
}

type Renderer struct {
	fonts []string
}

// NewRenderer probes the font candidate list and keeps the paths that exist.
func NewRenderer() *Renderer {
	r := &Renderer{}
	for _, path := range fontCandidates {
		if _, err := os.Stat(path); err == nil {
			r.fonts = append(r.fonts, path)
		}
	}
	return r
}

// FontNames returns display names for the available fonts, in selection
// order. Empty when only the builtin fallback face is available.
func (r *Renderer) FontNames() []string {
	names := make([]string, 0, len(r.fonts))
	for _, path := range r.fonts {
		base := filepath.Base(path)
		names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	return names
}

// RenderText draws text centered on a 512x512 canvas and returns the PNG
// bytes. fontIndex outside the available range falls back to the builtin
// face; newlines in text collapse to spaces.
func (r *Renderer) RenderText(text string, fontIndex int, background string) ([]byte, error) {
	switch background {
	case BackgroundNone, BackgroundTranslucent, BackgroundOnly:
	default:
		return nil, fmt.Errorf("unknown background mode %q", background)
	}

	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	dc := gg.NewContext(canvasSize, canvasSize)

	usedFallback := true
	if fontIndex >= 0 && fontIndex < len(r.fonts) {
		path := r.fonts[fontIndex]
		// shrink until the string fits the canvas
		for size := 400.0; size >= 40; size -= 20 {
			if err := dc.LoadFontFace(path, size); err != nil {
				break
			}
			usedFallback = false
			if w, _ := dc.MeasureString(text); w <= maxTextW {
				break
			}
		}
	}
	if usedFallback {
		dc.SetFontFace(basicfont.Face7x13)
	}

	switch background {
	case BackgroundTranslucent:
		dc.SetRGBA(0, 0, 0, 0.5)
		dc.DrawRoundedRectangle(16, 16, canvasSize-32, canvasSize-32, 48)
		dc.Fill()
	case BackgroundOnly:
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.Clear()
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, canvasSize/2, canvasSize/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}
