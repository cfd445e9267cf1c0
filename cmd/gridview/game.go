package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/claims"
	"github.com/aukilabs/splatgrid/client"
	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/viewport"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Wheel deltas are reported in notches. The viewport expects pixels.
const wheelNotchPixels = 100

var mouseButtons = map[ebiten.MouseButton]viewport.Button{
	ebiten.MouseButtonLeft:   viewport.ButtonPrimary,
	ebiten.MouseButtonMiddle: viewport.ButtonMiddle,
	ebiten.MouseButtonRight:  viewport.ButtonSecondary,
}

type game struct {
	ctx        context.Context
	client     *client.Client
	refresher  *viewport.Refresher
	viewport   *viewport.Viewport
	claimName  string
	captureRef string

	width  float64
	height float64
	dpr    float64

	canvas  *ebiten.Image
	dirty   bool
	focused bool
	mouse   viewport.MouseState
	status  string
	hover   string

	// Results of the asynchronous mutations, consumed in Update.
	actions chan string
	submits chan submitResult
}

type submitResult struct {
	claim models.Claim
	err   error
}

func newGame(ctx context.Context, c *client.Client, r *viewport.Refresher, viewerID, claimName, captureRef string) *game {
	g := &game{
		ctx:        ctx,
		client:     c,
		refresher:  r,
		claimName:  claimName,
		captureRef: captureRef,
		dirty:      true,
		actions:    make(chan string, 8),
		submits:    make(chan submitResult, 8),
	}

	g.viewport = viewport.New(1, 1, 1)
	g.viewport.SetViewer(viewerID)
	g.viewport.RequestRedraw = func() {
		g.dirty = true
	}
	g.viewport.OnToggle = func(c grid.Cell, selected bool) {
		g.status = fmt.Sprintf("%d cells selected", len(g.viewport.Selection()))
	}
	g.viewport.OnOpen = func(c models.Claim) {
		g.status = fmt.Sprintf("%s by %s (%s)", c.Name, c.OwnerName, c.CaptureRef)
		logs.WithTag("claim_id", c.ID).
			WithTag("capture_ref", c.CaptureRef).
			Info("claim opened")
	}
	g.viewport.OnHover = func(h viewport.Hover) {
		switch {
		case !h.Active:
			g.hover = ""
		case h.Claim != nil:
			g.hover = fmt.Sprintf("(%d, %d) %s", h.Cell.X, h.Cell.Y, h.Claim.Name)
		default:
			g.hover = fmt.Sprintf("(%d, %d)", h.Cell.X, h.Cell.Y)
		}
	}
	return g
}

func (g *game) Update() error {
	if g.dpr == 0 {
		return nil
	}

	select {
	case list := <-g.refresher.Results():
		g.viewport.SetClaims(list)
	default:
	}

	select {
	case msg := <-g.actions:
		g.status = msg
	case res := <-g.submits:
		g.status = g.viewport.FinishSubmit(res.claim, res.err)
	default:
	}

	if focused := ebiten.IsFocused(); focused != g.focused {
		g.focused = focused
		if focused {
			g.refresher.Request()
		}
	}

	g.handleMouse()
	g.handleKeys()
	return nil
}

func (g *game) handleMouse() {
	x, y := ebiten.CursorPosition()

	cur := viewport.MouseState{
		X: float64(x) / g.dpr,
		Y: float64(y) / g.dpr,
	}
	cur.Inside = g.focused &&
		cur.X >= 0 && cur.Y >= 0 &&
		cur.X < g.width && cur.Y < g.height

	for eb, b := range mouseButtons {
		if inpututil.IsMouseButtonJustPressed(eb) {
			cur.Pressed = append(cur.Pressed, b)
		}
		if inpututil.IsMouseButtonJustReleased(eb) {
			cur.Released = append(cur.Released, b)
		}
	}

	for _, e := range viewport.PointerEvents(g.mouse, cur) {
		g.viewport.HandlePointerEvent(e)
	}
	g.mouse = cur

	if _, dy := ebiten.Wheel(); dy != 0 && cur.Inside {
		g.viewport.HandleWheel(cur.X, cur.Y, -dy*wheelNotchPixels)
	}
}

func (g *game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		g.submitSelection()

	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		g.viewport.ClearSelection()
		g.status = ""

	case inpututil.IsKeyJustPressed(ebiten.KeyDelete),
		inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		g.deleteHovered()

	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.refresher.Request()

	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		g.viewport.CenterOn(grid.Point{})
	}
}

func (g *game) submitSelection() {
	cells := g.viewport.Selection()
	if len(cells) == 0 {
		return
	}

	req := claims.CreateRequest{
		Name:       g.claimName,
		CaptureRef: g.captureRef,
		Cells:      cells,
	}
	g.status = "submitting claim"

	go func() {
		c, err := g.client.CreateClaim(g.ctx, req)
		g.submits <- submitResult{claim: c, err: err}
		g.refresher.Request()
	}()
}

func (g *game) deleteHovered() {
	cell, ok := g.viewport.HoveredCell()
	if !ok {
		return
	}

	c, ok := g.viewport.ClaimAt(cell)
	if !ok {
		return
	}

	go func() {
		err := g.client.DeleteClaim(g.ctx, c.ID)
		switch {
		case errors.IsType(err, models.ErrTypeNotOwner):
			g.actions <- "only the owner can delete " + c.Name

		case err != nil:
			logs.Warn(errors.New("deleting claim failed").Wrap(err))
			g.actions <- "deleting claim failed"

		default:
			g.actions <- "deleted " + c.Name
		}
		g.refresher.Request()
	}()
}

func (g *game) Draw(screen *ebiten.Image) {
	bw, bh := g.viewport.BackingSize()
	if bw <= 0 || bh <= 0 {
		return
	}

	if g.canvas == nil || g.canvas.Bounds().Dx() != bw || g.canvas.Bounds().Dy() != bh {
		if g.canvas != nil {
			g.canvas.Deallocate()
		}
		g.canvas = ebiten.NewImage(bw, bh)
		g.dirty = true
	}

	if g.dirty {
		g.viewport.Render(surface{dst: g.canvas})
		g.dirty = false
	}
	screen.DrawImage(g.canvas, nil)

	var lines []string
	if g.hover != "" {
		lines = append(lines, g.hover)
	}
	if g.status != "" {
		lines = append(lines, g.status)
	}
	ebitenutil.DebugPrint(screen, strings.Join(lines, "\n"))
}

// Layout keeps the screen at device resolution and resizes the viewport
// whenever the window size or the device scale changes.
func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	dpr := ebiten.Monitor().DeviceScaleFactor()
	w := float64(outsideWidth)
	h := float64(outsideHeight)

	if w != g.width || h != g.height || dpr != g.dpr {
		first := g.dpr == 0
		g.width, g.height, g.dpr = w, h, dpr
		g.viewport.Resize(w, h, dpr)
		if first {
			g.viewport.CenterOn(grid.Point{})
		}
	}
	return g.viewport.BackingSize()
}
