package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/keyfall-go"
	"github.com/cbegin/keyfall-go/internal/playalong"
	"github.com/cbegin/keyfall-go/internal/song"
)

var keyNames = map[ebiten.Key]string{
	ebiten.KeySpace:      keyfall.KeySpace,
	ebiten.KeyArrowUp:    keyfall.KeyUp,
	ebiten.KeyArrowDown:  keyfall.KeyDown,
	ebiten.KeyArrowLeft:  keyfall.KeyLeft,
	ebiten.KeyArrowRight: keyfall.KeyRight,
	ebiten.KeyMinus:      keyfall.KeyMinus,
	ebiten.KeyEqual:      keyfall.KeyEquals,
	ebiten.KeyNumpadAdd:  keyfall.KeyPlus,
	ebiten.KeyEscape:     keyfall.KeyEscape,

	ebiten.KeyA: "A", ebiten.KeyB: "B", ebiten.KeyC: "C", ebiten.KeyD: "D",
	ebiten.KeyE: "E", ebiten.KeyF: "F", ebiten.KeyG: "G", ebiten.KeyH: "H",
	ebiten.KeyI: "I", ebiten.KeyJ: "J", ebiten.KeyK: "K", ebiten.KeyL: "L",
	ebiten.KeyM: "M", ebiten.KeyN: "N", ebiten.KeyO: "O", ebiten.KeyP: "P",
	ebiten.KeyQ: "Q", ebiten.KeyR: "R", ebiten.KeyS: "S", ebiten.KeyT: "T",
	ebiten.KeyU: "U", ebiten.KeyV: "V", ebiten.KeyW: "W", ebiten.KeyX: "X",
	ebiten.KeyY: "Y", ebiten.KeyZ: "Z",

	ebiten.KeyDigit0: "0", ebiten.KeyDigit1: "1", ebiten.KeyDigit2: "2",
	ebiten.KeyDigit3: "3", ebiten.KeyDigit4: "4", ebiten.KeyDigit5: "5",
	ebiten.KeyDigit6: "6", ebiten.KeyDigit7: "7", ebiten.KeyDigit8: "8",
	ebiten.KeyDigit9: "9",
}

// handleKeys forwards this frame's key changes. It returns false when the
// player asked to quit.
func (g *game) handleKeys() bool {
	shift := ebiten.IsKeyPressed(ebiten.KeyShift)
	var keys []ebiten.Key
	for _, k := range inpututil.AppendJustPressedKeys(keys[:0]) {
		name, ok := keyNames[k]
		if !ok {
			continue
		}
		if name == keyfall.KeyEscape {
			return false
		}
		g.keyboardKey(name, true, shift)
	}
	for _, k := range inpututil.AppendJustReleasedKeys(keys[:0]) {
		if name, ok := keyNames[k]; ok {
			g.keyboardKey(name, false, shift)
		}
	}
	return true
}

func (g *game) keyboardKey(name string, down, shift bool) {
	g.ctl.KeyboardInput(keyfall.KeyEvent{Name: name, Down: down, Shift: shift})
	if key, ok := g.keyMap[name]; ok {
		g.sink.Live(key, 0, down)
	}
}

// handleMouse scrubs from the progress bar and plays keys clicked on the
// on-screen keyboard.
func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()
	x := float64(mx) / float64(max(1, g.viewW))

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.mouseDown = true
		g.mouseX = mx
		g.ctl.MouseInput(keyfall.MouseEvent{
			Action:        keyfall.MousePress,
			X:             x,
			InProgressBar: pointInRect(mx, my, l.progress),
		})
		if pointInRect(mx, my, l.keyboard) {
			g.pressMouseKey(mx, my, l)
		}
		return
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		g.mouseDown = false
		g.ctl.MouseInput(keyfall.MouseEvent{Action: keyfall.MouseRelease, X: x})
		g.releaseMouseKey()
		return
	}
	if g.mouseDown && mx != g.mouseX {
		g.mouseX = mx
		g.ctl.MouseInput(keyfall.MouseEvent{Action: keyfall.MouseMove, X: x})
	}
}

func (g *game) pressMouseKey(mx, my int, l uiLayout) {
	kb := g.keyboard(l)
	upper := my < l.keyboard.Min.Y+l.keyboard.Dy()*blackKeyLength/100
	key, ok := kb.KeyAt(float64(mx-l.keyboard.Min.X), upper)
	if !ok {
		return
	}
	g.mouseKey = int(key)
	g.ctl.PressKey(playalong.SourceMouse, key, true)
	g.sink.Live(key, 0, true)
}

func (g *game) releaseMouseKey() {
	if g.mouseKey < 0 {
		return
	}
	key := song.Key(g.mouseKey)
	g.mouseKey = -1
	g.ctl.PressKey(playalong.SourceMouse, key, false)
	g.sink.Live(key, 0, false)
}
