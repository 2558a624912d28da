package render

import (
	"math"
)

// Rect is an axis-aligned box in world coordinates
type Rect struct {
	X, Y, W, H float64
}

// Camera is a viewport transform with target-seeking smoothing and
// world-bounds clamping. Position is mutated only by the camera itself;
// scenes consume it read-only
type Camera struct {
	x, y             float64 // Top-left corner in world space
	targetX, targetY float64
	viewW, viewH     float64
	worldW, worldH   float64
	scale            float64
	smoothing        float64 // Higher converges faster
}

// NewCamera creates a camera over a world of the given size
func NewCamera(viewW, viewH, worldW, worldH, smoothing float64) *Camera {
	return &Camera{
		viewW:     viewW,
		viewH:     viewH,
		worldW:    worldW,
		worldH:    worldH,
		scale:     1,
		smoothing: smoothing,
	}
}

// Resize updates the viewport dimensions (terminal resize)
func (c *Camera) Resize(viewW, viewH float64) {
	c.viewW = viewW
	c.viewH = viewH
	c.x, c.y = c.clamp(c.x, c.y)
}

// Follow sets the target so the viewport centers on (x, y)
func (c *Camera) Follow(x, y float64) {
	c.targetX = x - c.viewW/(2*c.scale)
	c.targetY = y - c.viewH/(2*c.scale)
}

// Update interpolates toward the target and clamps to world bounds.
// Exponential smoothing is frame-rate independent in dt
func (c *Camera) Update(dt float64) {
	k := 1 - math.Exp(-c.smoothing*dt)
	c.x += (c.targetX - c.x) * k
	c.y += (c.targetY - c.y) * k
	c.x, c.y = c.clamp(c.x, c.y)
}

// SnapToTarget bypasses interpolation entirely
func (c *Camera) SnapToTarget() {
	c.x, c.y = c.clamp(c.targetX, c.targetY)
}

// Position returns the current top-left world coordinate
func (c *Camera) Position() (float64, float64) {
	return c.x, c.y
}

// WorldToScreen converts a world coordinate to viewport space
func (c *Camera) WorldToScreen(wx, wy float64) (float64, float64) {
	return (wx - c.x) * c.scale, (wy - c.y) * c.scale
}

// ScreenToWorld is the exact inverse of WorldToScreen for a fixed
// scale and position
func (c *Camera) ScreenToWorld(sx, sy float64) (float64, float64) {
	return sx/c.scale + c.x, sy/c.scale + c.y
}

// IsVisible reports whether the rect overlaps the current viewport.
// Used by scenes to cull off-screen draws
func (c *Camera) IsVisible(r Rect) bool {
	vw := c.viewW / c.scale
	vh := c.viewH / c.scale
	return r.X+r.W >= c.x && r.X <= c.x+vw &&
		r.Y+r.H >= c.y && r.Y <= c.y+vh
}

func (c *Camera) clamp(x, y float64) (float64, float64) {
	maxX := c.worldW - c.viewW/c.scale
	maxY := c.worldH - c.viewH/c.scale
	if maxX < 0 {
		maxX = 0
	}
	if maxY < 0 {
		maxY = 0
	}
	if x < 0 {
		x = 0
	} else if x > maxX {
		x = maxX
	}
	if y < 0 {
		y = 0
	} else if y > maxY {
		y = maxY
	}
	return x, y
}
