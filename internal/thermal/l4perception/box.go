package l4perception

import "fmt"

// Box is an axis-aligned integer rectangle with an associated mass (the
// number of foreground pixels it was built from). It is a value type; a
// copy is taken every time a box is stored.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Mass   int `json:"mass"`
}

// MidX is the horizontal centre.
func (b Box) MidX() float64 { return float64(b.X) + float64(b.Width)/2 }

// MidY is the vertical centre.
func (b Box) MidY() float64 { return float64(b.Y) + float64(b.Height)/2 }

func (b Box) Left() int   { return b.X }
func (b Box) Top() int    { return b.Y }
func (b Box) Right() int  { return b.X + b.Width }
func (b Box) Bottom() int { return b.Y + b.Height }
func (b Box) Area() int   { return b.Width * b.Height }

// OverlapArea returns the area of intersection with other, 0 when disjoint.
func (b Box) OverlapArea(other Box) int {
	xo := max(0, min(b.Right(), other.Right())-max(b.Left(), other.Left()))
	yo := max(0, min(b.Bottom(), other.Bottom())-max(b.Top(), other.Top()))
	return xo * yo
}

// Translate returns the box moved by (dx, dy), keeping size and mass.
func (b Box) Translate(dx, dy int) Box {
	b.X += dx
	b.Y += dy
	return b
}

// Pad grows the box by n pixels on every side, keeping mass.
func (b Box) Pad(n int) Box {
	b.X -= n
	b.Y -= n
	b.Width += 2 * n
	b.Height += 2 * n
	return b
}

func (b Box) String() string {
	return fmt.Sprintf("<(%d,%d)-%dx%d>", b.X, b.Y, b.Width, b.Height)
}
