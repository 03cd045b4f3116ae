// Package render draws a snapshot window as a wireframe PNG: one outline per
// node, labelled with its id name, role or screen position.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mj1618/uitransfer/internal/model"
)

// LabelMode controls what text is drawn on each node.
type LabelMode int

const (
	// LabelIDs draws the id entry name, or the compact role when there is none.
	LabelIDs LabelMode = iota
	// LabelCoords draws "(x,y)" window-absolute center coordinates.
	LabelCoords
	// LabelNone draws outlines only.
	LabelNone
)

// ParseLabelMode maps a flag value to a LabelMode.
func ParseLabelMode(s string) (LabelMode, error) {
	switch s {
	case "", "ids":
		return LabelIDs, nil
	case "coords":
		return LabelCoords, nil
	case "none":
		return LabelNone, nil
	}
	return 0, fmt.Errorf("unknown label mode %q (use ids, coords or none)", s)
}

// Options tune the wireframe.
type Options struct {
	// Scale converts window pixels to image pixels. Zero means 1.
	Scale float64
	Label LabelMode
}

var (
	background   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	boxColor     = color.RGBA{R: 200, G: 0, B: 0, A: 255}
	focusColor   = color.RGBA{R: 0, G: 120, B: 255, A: 255}
	textColor    = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	outlineColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// placed is a node with its window-absolute origin.
type placed struct {
	node *model.Node
	x, y int
}

// Wireframe draws w. Node positions are relative to their parent and
// shifted by the parent's scroll offset and the node's translation.
func Wireframe(w *model.Window, opts Options) *image.RGBA {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	width := int(float64(w.Width) * scale)
	height := int(float64(w.Height) * scale)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	if w.Root == nil {
		return img
	}

	stack := []placed{{node: w.Root, x: 0, y: 0}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := p.node

		x := p.x + int(n.X)
		y := p.y + int(n.Y)
		if len(n.Matrix) == 9 {
			x += int(n.Matrix[2])
			y += int(n.Matrix[5])
		}

		c := boxColor
		if n.State.Has(model.StateFocused) {
			c = focusColor
		}
		sx, sy := int(float64(x)*scale), int(float64(y)*scale)
		sw, sh := int(float64(n.Width)*scale), int(float64(n.Height)*scale)
		drawRectangle(img, sx, sy, sx+sw, sy+sh, c)
		if label := nodeLabel(n, x, y, opts.Label); label != "" {
			drawTextWithOutline(img, label, sx+sw/2, sy+sh/2, textColor, outlineColor)
		}

		// Reverse push keeps siblings drawn in order, later ones on top.
		for i := len(n.Children) - 1; i >= 0; i-- {
			if child := n.Children[i]; child != nil {
				stack = append(stack, placed{node: child, x: x - int(n.ScrollX), y: y - int(n.ScrollY)})
			}
		}
	}
	return img
}

func nodeLabel(n *model.Node, x, y int, mode LabelMode) string {
	switch mode {
	case LabelNone:
		return ""
	case LabelCoords:
		return fmt.Sprintf("(%d,%d)", x+int(n.Width)/2, y+int(n.Height)/2)
	}
	if n.IDEntry != "" {
		return n.IDEntry
	}
	if n.ClassName == "" {
		return ""
	}
	return model.MapRole(n.ClassName)
}

// WritePNG renders window index i of snap to out.
func WritePNG(out io.Writer, snap *model.Snapshot, i int, opts Options) error {
	if i < 0 || i >= len(snap.Windows) {
		return fmt.Errorf("window %d out of range (%d windows)", i, len(snap.Windows))
	}
	return png.Encode(out, Wireframe(snap.Windows[i], opts))
}

func isWithinBounds(bounds image.Rectangle, x, y int) bool {
	return x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y
}

// drawRectangle draws a rectangle outline clamped to the image.
func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	bounds := img.Bounds()
	x1, y1 = max(x1, bounds.Min.X), max(y1, bounds.Min.Y)
	x2, y2 = min(x2, bounds.Max.X), min(y2, bounds.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return
	}

	for x := x1; x < x2; x++ {
		img.Set(x, y1, c)
		img.Set(x, y2-1, c)
	}
	for y := y1; y < y2; y++ {
		img.Set(x1, y, c)
		img.Set(x2-1, y, c)
	}
}

// drawTextWithOutline centers text on (x, y) using basicfont.Face7x13.
func drawTextWithOutline(img *image.RGBA, text string, x, y int, fg, outline color.Color) {
	const charWidth, lineHeight = 7, 13
	ox := x - len(text)*charWidth/2
	oy := y + lineHeight/2 - 2
	if !isWithinBounds(img.Bounds(), x, y) {
		return
	}

	drawAt := func(dx, dy int, c color.Color) {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(ox+dx, oy+dy),
		}
		d.DrawString(text)
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx != 0 || dy != 0 {
				drawAt(dx, dy, outline)
			}
		}
	}
	drawAt(0, 0, fg)
}
