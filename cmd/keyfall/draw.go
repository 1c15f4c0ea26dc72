package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/cbegin/keyfall-go/internal/playalong"
	"github.com/cbegin/keyfall-go/internal/song"
	"github.com/cbegin/keyfall-go/internal/view"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 640
	minWindowH = 400

	progressH      = 20
	keyboardH      = 120
	blackKeyLength = 62 // percent of the white key length
	pixelsPerSec   = 180

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	bgColor       = color.RGBA{16, 16, 22, 255}
	panelColor    = color.RGBA{192, 192, 192, 255}
	borderColor   = color.RGBA{128, 128, 128, 255}
	sunkenBgColor = color.RGBA{24, 24, 32, 255}
	fillColor     = color.RGBA{0, 0, 128, 255}
	beatLineColor = color.RGBA{40, 44, 58, 255}

	// 3D bevel colors for old-school embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	whiteKeyColor  = color.RGBA{236, 236, 228, 255}
	blackKeyColor  = color.RGBA{20, 20, 24, 255}
	requiredColor  = color.RGBA{240, 200, 40, 255}
	userPressColor = color.RGBA{80, 160, 255, 255}

	// Per-track note colors, cycled.
	trackColors = []color.RGBA{
		{80, 200, 120, 255},
		{90, 150, 240, 255},
		{230, 120, 80, 255},
		{200, 110, 220, 255},
		{230, 200, 80, 255},
		{80, 210, 210, 255},
	}
)

type uiLayout struct {
	progress  image.Rectangle
	waterfall image.Rectangle
	keyboard  image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w, h := g.viewW, g.viewH
	return uiLayout{
		progress:  image.Rect(0, 0, w, progressH),
		waterfall: image.Rect(0, progressH, w, h-keyboardH),
		keyboard:  image.Rect(0, h-keyboardH, w, h),
	}
}

func (g *game) keyboard(l uiLayout) view.Keyboard {
	return view.NewKeyboard(view.FirstKey, view.LastKey, float64(l.keyboard.Dx()))
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	st := g.ctl.State()
	l := g.layoutRects()
	kb := g.keyboard(l)

	g.drawWaterfall(screen, l.waterfall, kb, st.Visual)
	g.drawKeyboard(screen, l.keyboard, kb, st.Required.Keys, st.Waiting)
	g.drawProgress(screen, l.progress, st.Percentage)

	status := fmt.Sprintf("%s / %s  %.2fx  %+dms", view.Clock(st.Time), view.Clock(st.Duration), st.Config.Speed, st.Config.Offset.Milliseconds())
	if st.Config.PlayAlong {
		status += "  play-along"
	}
	if g.device != "" {
		status += "  " + g.device
	}
	g.drawText(screen, status, 8, l.waterfall.Min.Y+6, 1)

	msg := g.toast.Current(g.last)
	if st.Waiting && len(st.Required.Keys) > 0 {
		names := make([]string, len(st.Required.Keys))
		for i, k := range st.Required.Keys {
			names[i] = view.KeyName(k)
		}
		msg = "Play " + strings.Join(names, " ")
	}
	if msg != "" {
		g.drawToast(screen, l.waterfall, msg)
	}
}

func (g *game) drawWaterfall(screen *ebiten.Image, rect image.Rectangle, kb view.Keyboard, now time.Duration) {
	wf := view.Waterfall{Top: float64(rect.Min.Y), Bottom: float64(rect.Max.Y), PixelsPerSecond: pixelsPerSec}
	// Octave guides at every C.
	for k := view.FirstKey; k <= view.LastKey; k++ {
		if k%12 != 0 {
			continue
		}
		x, _, _ := kb.Span(k)
		ebitenutil.DrawRect(screen, float64(rect.Min.X)+x, float64(rect.Min.Y), 1, float64(rect.Dy()), beatLineColor)
	}
	for _, n := range g.notes {
		x, w, ok := kb.Span(n.Key)
		if !ok {
			continue
		}
		y0, y1, visible := wf.Project(n, now)
		if !visible {
			continue
		}
		c := trackColors[n.Track%len(trackColors)]
		if view.IsBlack(n.Key) {
			c = darken(c)
		}
		ebitenutil.DrawRect(screen, float64(rect.Min.X)+x+1, y0, max(1, w-2), max(1, y1-y0), c)
	}
}

func (g *game) drawKeyboard(screen *ebiten.Image, rect image.Rectangle, kb view.Keyboard, required []song.Key, waiting bool) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), bevelDarker)
	isRequired := func(k song.Key) bool {
		if !waiting {
			return false
		}
		for _, r := range required {
			if r == k {
				return true
			}
		}
		return false
	}
	keyColor := func(k song.Key, base color.RGBA) color.RGBA {
		switch {
		case g.ctl.PressedBy(k, playalong.SourceUser),
			g.ctl.PressedBy(k, playalong.SourceKeyboard),
			g.ctl.PressedBy(k, playalong.SourceMouse):
			return userPressColor
		case isRequired(k):
			return requiredColor
		}
		if track, ok := g.lights.Lit(k); ok {
			return trackColors[track%len(trackColors)]
		}
		return base
	}
	top := float64(rect.Min.Y)
	for pass := 0; pass < 2; pass++ {
		black := pass == 1
		for k := view.FirstKey; k <= view.LastKey; k++ {
			if view.IsBlack(k) != black {
				continue
			}
			x, w, _ := kb.Span(k)
			x += float64(rect.Min.X)
			if !black {
				ebitenutil.DrawRect(screen, x+1, top+2, w-2, float64(rect.Dy()-4), keyColor(k, whiteKeyColor))
				continue
			}
			h := float64(rect.Dy()) * blackKeyLength / 100
			ebitenutil.DrawRect(screen, x, top+2, w, h, keyColor(k, blackKeyColor))
		}
	}
	// Shadow where the waterfall meets the keys.
	ebitenutil.DrawRect(screen, float64(rect.Min.X), top, float64(rect.Dx()), 2, borderColor)
}

func (g *game) drawProgress(screen *ebiten.Image, rect image.Rectangle, fraction float64) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	fill := float64(rect.Dx()-4) * fraction
	if fill > 0 {
		ebitenutil.DrawRect(screen, float64(rect.Min.X+2), float64(rect.Min.Y+2), fill, float64(rect.Dy()-4), fillColor)
	}
	drawSunkenBorder(screen, rect)
}

func (g *game) drawToast(screen *ebiten.Image, area image.Rectangle, msg string) {
	w := len([]rune(msg))*charW + 32
	h := lineH + 20
	x := area.Min.X + (area.Dx()-w)/2
	y := area.Min.Y + area.Dy()/3
	r := image.Rect(x, y, x+w, y+h)
	ebitenutil.DrawRect(screen, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), panelColor)
	drawBorder(screen, r)
	g.drawText(screen, msg, x+16, y+10, textScale)
}

func darken(c color.RGBA) color.RGBA {
	return color.RGBA{uint8(int(c.R) * 3 / 4), uint8(int(c.G) * 3 / 4), uint8(int(c.B) * 3 / 4), c.A}
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x, y int, scale float64) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	// Embossed shadow.
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(scale, scale)
	opS.GeoM.Translate(float64(x+1), float64(y+1))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}
