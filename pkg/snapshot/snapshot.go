// Package snapshot draws a top-down floor plan of a scene and encodes it
// as WebP.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/scene"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	Background = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	GridColor  = color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	ModelColor = color.NRGBA{R: 0x99, G: 0x88, B: 0x77, A: 0xff}
	LabelColor = color.NRGBA{A: 0xff}
)

// Options controls the drawing scale.
type Options struct {
	PixelsPerUnit int
	Margin        int // world units around the furthest object
	Labels        bool
}

// DefaultOptions draws 40 pixels per unit with a one unit margin.
func DefaultOptions() Options {
	return Options{PixelsPerUnit: 40, Margin: 1, Labels: true}
}

// plan maps world x/z onto image pixels. World x grows right and world z
// grows down.
type plan struct {
	minX, minZ float64
	ppu        float64
}

func (p plan) px(x, z float64) (int, int) {
	return int(math.Round((x - p.minX) * p.ppu)), int(math.Round((z - p.minZ) * p.ppu))
}

// Render draws every placed object's footprint over a unit grid. Objects
// are drawn in stacking order so whatever rests on another object covers
// it.
func Render(s *scene.Scene, cat *catalog.Catalog, opt Options) (*image.NRGBA, error) {
	if opt.PixelsPerUnit <= 0 {
		return nil, fmt.Errorf("snapshot: pixels per unit %d", opt.PixelsPerUnit)
	}

	order := drawOrder(s)
	minX, minZ, maxX, maxZ := 0.0, 0.0, 0.0, 0.0
	for i, h := range order {
		b, _ := s.BoundingBox(h)
		if i == 0 {
			minX, minZ, maxX, maxZ = b.Min.X, b.Min.Z, b.Max.X, b.Max.Z
			continue
		}
		minX, minZ = math.Min(minX, b.Min.X), math.Min(minZ, b.Min.Z)
		maxX, maxZ = math.Max(maxX, b.Max.X), math.Max(maxZ, b.Max.Z)
	}
	m := float64(opt.Margin)
	minX, minZ, maxX, maxZ = minX-m, minZ-m, maxX+m, maxZ+m

	p := plan{minX: minX, minZ: minZ, ppu: float64(opt.PixelsPerUnit)}
	w, h := p.px(maxX, maxZ)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("snapshot: empty plan %dx%d", w, h)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	drawGrid(img, p, minX, minZ, maxX, maxZ)
	for _, id := range order {
		o := s.Get(id)
		fill := ModelColor
		if proto, ok := cat.Get(o.Prototype); ok {
			if c, err := ParseColor(proto.Color); err == nil {
				fill = c
			}
		}
		r := footprint(p, o.Bounds())
		draw.Draw(img, r, image.NewUniform(fill), image.Point{}, draw.Src)
		outline(img, r, darken(fill))
		if opt.Labels {
			label(img, r.Min.X+2, r.Min.Y+11, o.Prototype)
		}
	}
	return img, nil
}

// drawOrder lists roots, each followed by what is stacked on it.
func drawOrder(s *scene.Scene) []scene.Handle {
	var out []scene.Handle
	for _, r := range s.Roots() {
		out = append(out, s.Descendants(r)...)
	}
	return out
}

func footprint(p plan, b geom.Box) image.Rectangle {
	x0, y0 := p.px(b.Min.X, b.Min.Z)
	x1, y1 := p.px(b.Max.X, b.Max.Z)
	return image.Rect(x0, y0, x1, y1)
}

func drawGrid(img *image.NRGBA, p plan, minX, minZ, maxX, maxZ float64) {
	b := img.Bounds()
	for x := math.Ceil(minX); x <= maxX; x++ {
		px, _ := p.px(x, minZ)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.SetNRGBA(px, y, GridColor)
		}
	}
	for z := math.Ceil(minZ); z <= maxZ; z++ {
		_, py := p.px(minX, z)
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, py, GridColor)
		}
	}
}

func outline(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, c)
		img.SetNRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, c)
		img.SetNRGBA(r.Max.X-1, y, c)
	}
}

func label(img *image.NRGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(LabelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func darken(c color.NRGBA) color.NRGBA {
	return color.NRGBA{R: c.R / 2, G: c.G / 2, B: c.B / 2, A: c.A}
}

// ParseColor reads a "#rrggbb" colour.
func ParseColor(s string) (color.NRGBA, error) {
	var r, g, b uint8
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("snapshot: colour %q is not #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("snapshot: colour %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Encode writes img to w as lossless WebP.
func Encode(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("snapshot: webp encode: %w", err)
	}
	return nil
}

// WriteFile renders s and writes it to path.
func WriteFile(path string, s *scene.Scene, cat *catalog.Catalog, opt Options) error {
	img, err := Render(s, cat, opt)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
