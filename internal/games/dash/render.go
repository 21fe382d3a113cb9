package dash

import (
	"fmt"
	"math"

	"github.com/vovakirdan/dash-rally/internal/core"
)

// Fallback characters used when a sprite is not loaded.
const (
	GroundChar   = '═'
	SubsoilChar  = '░'
	RunnerChar   = '█'
	LowChar      = '▓'
	HighChar     = '▒'
	HitboxChar   = '·'
	SpeedLineSym = '─'
)

// viewport maps world pixels to screen cells.
type viewport struct {
	cellW, cellH float64
	groundRow    int
}

func (g *Game) viewport(dst *core.Screen) viewport {
	cw, ch := g.cfg.World.CellW, g.cfg.World.CellH
	if cw <= 0 {
		cw = 8
	}
	if ch <= 0 {
		ch = 12
	}
	row := int((g.viewH - g.cfg.World.GroundPad) / ch)
	if row >= dst.Height() {
		row = dst.Height() - 1
	}
	return viewport{cellW: cw, cellH: ch, groundRow: row}
}

// cells converts a world box to the cell rectangle it covers.
func (v viewport) cells(b core.Box) core.Rect {
	x0 := int(math.Floor(b.X / v.cellW))
	x1 := int(math.Ceil(b.Right() / v.cellW))
	top := v.groundRow - int(math.Ceil(b.Top()/v.cellH))
	bottom := v.groundRow - int(math.Floor(b.Y/v.cellH))
	return core.NewRect(x0, top, core.Max(1, x1-x0), core.Max(1, bottom-top))
}

// Render draws the current game state to the screen.
func (g *Game) Render(dst *core.Screen) {
	dst.Clear()
	if g.viewW <= 0 || g.viewH <= 0 {
		return
	}
	v := g.viewport(dst)

	g.drawGround(dst, v)
	for _, o := range g.obstacles {
		g.drawObstacle(dst, v, o)
	}
	g.drawRunner(dst, v)
	if g.debug {
		g.drawHitboxes(dst, v)
	}

	switch {
	case !g.active:
		dst.DrawTextCentered(v.groundRow/2, "waiting for an attempt", core.ColorGray)
	case g.status == StatusCrashed:
		dst.DrawTextCentered(v.groundRow/2, fmt.Sprintf("CRASHED after %d obstacles", g.passed), core.ColorRed)
	}
}

func (g *Game) drawGround(dst *core.Screen, v viewport) {
	dst.DrawHLine(0, v.groundRow, dst.Width(), GroundChar, core.ColorGray)
	// ground texture scrolls with travel
	offset := int(g.travel*0.6/v.cellW) % 4
	for y := v.groundRow + 1; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			if (x+offset+y)%4 == 0 {
				dst.SetColored(x, y, SubsoilChar, core.ColorGray)
			}
		}
	}
}

func (g *Game) drawObstacle(dst *core.Screen, v viewport, o Obstacle) {
	rect := v.cells(o.Box())
	fallback := LowChar
	color := core.ColorCyan
	if o.Kind == KindHigh {
		fallback = HighChar
		color = core.ColorYellow
	}
	g.drawSprite(dst, rect, o.Skin, fallback, color)
}

func (g *Game) drawRunner(dst *core.Screen, v viewport) {
	now := g.clock
	box := g.resolver.RunnerBox(g.runner, now)
	rect := v.cells(box)

	key := "fluffle_run1"
	switch {
	case g.status == StatusCrashed:
		key = "fluffle_crash"
	case g.runner.Sliding(now):
		key = "fluffle_slide"
	case !g.physics.Grounded(g.runner):
		key = "fluffle_jump"
	case int(g.travel/28)%2 == 1:
		key = "fluffle_run2"
	}
	g.drawSprite(dst, rect, key, RunnerChar, core.ColorBrightMagenta)

	if g.runner.Dashing(now) {
		for i := 1; i <= 3; i++ {
			dst.SetColored(rect.X-i, rect.Y+rect.H/2, SpeedLineSym, core.ColorBrightCyan)
		}
	}
}

// drawSprite paints the sprite for key into rect, or a solid block when
// the sprite is not loaded.
func (g *Game) drawSprite(dst *core.Screen, rect core.Rect, key string, fallback rune, color core.Color) {
	sp, ok := g.assets.Get(key)
	if !ok {
		dst.DrawRect(rect, fallback, color)
		return
	}
	if sp.Color != core.ColorDefault {
		color = sp.Color
	}
	for dy := 0; dy < rect.H; dy++ {
		for dx := 0; dx < rect.W; dx++ {
			r := sp.At(dx, dy, rect.W, rect.H)
			if r == ' ' {
				continue
			}
			dst.SetColored(rect.X+dx, rect.Y+dy, r, color)
		}
	}
}

// drawHitboxes outlines the padded runner box and obstacle boxes.
func (g *Game) drawHitboxes(dst *core.Screen, v viewport) {
	now := g.clock
	t := g.difficulty.Level(g.passed)
	pad := g.resolver.Pad(g.runner, t, now)
	box := g.resolver.RunnerBox(g.runner, now)
	inner := core.Box{X: box.X + pad, Y: box.Y + pad, W: box.W - 2*pad, H: box.H - 2*pad}
	if inner.W > 0 && inner.H > 0 {
		outline(dst, v.cells(inner), core.ColorRed)
	}
	for _, o := range g.obstacles {
		outline(dst, v.cells(o.Box()), core.ColorRed)
	}
	dst.DrawText(0, 0, fmt.Sprintf("t=%.2f pad=%.0f next=%.0f", t, pad, g.spawner.NextAt()))
}

func outline(dst *core.Screen, r core.Rect, c core.Color) {
	dst.SetColored(r.X, r.Y, HitboxChar, c)
	dst.SetColored(r.Right()-1, r.Y, HitboxChar, c)
	dst.SetColored(r.X, r.Bottom()-1, HitboxChar, c)
	dst.SetColored(r.Right()-1, r.Bottom()-1, HitboxChar, c)
}
