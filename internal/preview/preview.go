// Package preview draws the 1200x630 social preview card.
package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 1200
	Height = 630

	maxTextWidth = 1100
	hint         = "Navigate Forward & Backward"
)

type Options struct {
	Title       string
	Description string
}

type stop struct {
	at float64
	c  color.RGBA
}

var background = []stop{
	{0, color.RGBA{0x2D, 0x1B, 0x69, 0xFF}},
	{0.3, color.RGBA{0x8A, 0x63, 0xD2, 0xFF}},
	{0.6, color.RGBA{0x1E, 0x90, 0xFF, 0xFF}},
	{1, color.RGBA{0x00, 0xD4, 0xAA, 0xFF}},
}

// Render draws the card: gradient road, floating cards, title,
// description and the navigation hint.
func Render(opts Options) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	paintGradient(img)
	paintRoadLines(img)
	paintBottomFade(img, 200)

	white := color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	glass := color.NRGBA{0xFF, 0xFF, 0xFF, 0x26}
	edge := color.NRGBA{0xFF, 0xFF, 0xFF, 0x66}

	cx := Width / 2
	top := 90
	card(img, image.Rect(cx-60-24-80, top+20, cx-60-24, top+100), glass, edge)
	card(img, image.Rect(cx-60, top, cx+60, top+120), white, color.NRGBA{0xFF, 0xFF, 0xFF, 0x99})
	card(img, image.Rect(cx+60+24, top+20, cx+60+24+80, top+100), glass, edge)

	y := top + 120 + 40
	y += drawText(img, strings.TrimSpace(opts.Title), 6, cx, y, white) + 32
	y += drawText(img, strings.TrimSpace(opts.Description), 3, cx, y, color.RGBA{0xEB, 0xEB, 0xEB, 0xFF}) + 48

	pill := image.Rect(cx-360, y, cx+360, y+72)
	card(img, pill, color.NRGBA{0xFF, 0xFF, 0xFF, 0x26}, color.NRGBA{0xFF, 0xFF, 0xFF, 0x4D})
	drawText(img, hint, 3, cx, y+(72-39)/2, white)
	return img
}

// Encode writes the card as PNG.
func Encode(w io.Writer, opts Options) error {
	return png.Encode(w, Render(opts))
}

// Renderer encodes the card once and serves the cached bytes.
type Renderer struct {
	opts Options
	once sync.Once
	data []byte
	err  error
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

func (r *Renderer) PNG() ([]byte, error) {
	r.once.Do(func() {
		var buf bytes.Buffer
		r.err = Encode(&buf, r.opts)
		r.data = buf.Bytes()
	})
	return r.data, r.err
}

func paintGradient(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		c := gradientAt(float64(y-b.Min.Y) / float64(b.Dy()-1))
		draw.Draw(img, image.Rect(b.Min.X, y, b.Max.X, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func gradientAt(t float64) color.RGBA {
	for i := 1; i < len(background); i++ {
		a, b := background[i-1], background[i]
		if t > b.at {
			continue
		}
		f := (t - a.at) / (b.at - a.at)
		return color.RGBA{
			R: lerp8(a.c.R, b.c.R, f),
			G: lerp8(a.c.G, b.c.G, f),
			B: lerp8(a.c.B, b.c.B, f),
			A: 0xFF,
		}
	}
	return background[len(background)-1].c
}

func lerp8(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

func paintRoadLines(img *image.RGBA) {
	line := image.NewUniform(color.NRGBA{0xFF, 0xFF, 0xFF, 0x1A})
	for _, frac := range []float64{0.22, 0.77} {
		x := int(frac * Width)
		draw.Draw(img, image.Rect(x, 0, x+Width/100, Height), line, image.Point{}, draw.Over)
	}
}

func paintBottomFade(img *image.RGBA, height int) {
	for i := 0; i < height; i++ {
		alpha := uint8(0.4 * 255 * float64(i+1) / float64(height))
		y := Height - height + i
		draw.Draw(img, image.Rect(0, y, Width, y+1), image.NewUniform(color.NRGBA{0, 0, 0, alpha}), image.Point{}, draw.Over)
	}
}

func card(img *image.RGBA, r image.Rectangle, fill, border color.Color) {
	draw.Draw(img, r, image.NewUniform(fill), image.Point{}, draw.Over)
	const w = 3
	edge := image.NewUniform(border)
	for _, e := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+w, r.Min.X+w, r.Max.Y-w),
		image.Rect(r.Max.X-w, r.Min.Y+w, r.Max.X, r.Max.Y-w),
	} {
		draw.Draw(img, e, edge, image.Point{}, draw.Over)
	}
}

// drawText renders s with the 7x13 bitmap face, scales it up (down to fit
// maxTextWidth) and centres it on cx with a drop shadow. It returns the
// drawn height.
func drawText(dst *image.RGBA, s string, scale, cx, y int, c color.Color) int {
	if s == "" {
		return 0
	}
	face := basicfont.Face7x13
	m := face.Metrics()
	w := font.MeasureString(face, s).Ceil()
	h := m.Height.Ceil()

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, m.Ascent.Ceil()),
	}
	d.DrawString(s)

	sw, sh := w*scale, h*scale
	if sw > maxTextWidth {
		sh = sh * maxTextWidth / sw
		sw = maxTextWidth
	}
	dr := image.Rect(cx-sw/2, y, cx-sw/2+sw, y+sh)

	shadow := image.NewRGBA(glyphs.Bounds())
	draw.DrawMask(shadow, shadow.Bounds(), image.NewUniform(color.NRGBA{0, 0, 0, 0x99}), image.Point{}, glyphs, image.Point{}, draw.Src)
	off := scale
	draw.ApproxBiLinear.Scale(dst, dr.Add(image.Pt(off, off)), shadow, shadow.Bounds(), draw.Over, nil)
	draw.ApproxBiLinear.Scale(dst, dr, glyphs, glyphs.Bounds(), draw.Over, nil)
	return sh
}
