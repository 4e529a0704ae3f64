// Package geom holds the 2D primitives the simulation moves over: points,
// axis-aligned rectangles, and the discrete move directions.
package geom

import (
	"fmt"
	"math"
)

// Pt is a convenience constructor for Point.
func Pt(x, y float64) Point { return Point{x, y} }

// Point represents a point in <X,Y> 2-space.
type Point struct{ X, Y float64 }

// Origin is the zero value of Point, the simulation origin.
var Origin = Point{}

// Add adds another point's values to a copy of this point, returning the copy.
func (pt Point) Add(other Point) Point {
	pt.X += other.X
	pt.Y += other.Y
	return pt
}

// Sub subtracts another point's values from a copy of this point, returning
// the copy.
func (pt Point) Sub(other Point) Point {
	pt.X -= other.X
	pt.Y -= other.Y
	return pt
}

// Scale multiplies a copy of this point's values by a scalar, returning the
// copy.
func (pt Point) Scale(k float64) Point {
	pt.X *= k
	pt.Y *= k
	return pt
}

// Dot returns the dot product of this point with another.
func (pt Point) Dot(other Point) float64 {
	return pt.X*other.X + pt.Y*other.Y
}

// Norm returns the Euclidean length of the vector from the origin to pt.
func (pt Point) Norm() float64 {
	return math.Hypot(pt.X, pt.Y)
}

// Dist returns the Euclidean distance between two points.
func (pt Point) Dist(other Point) float64 {
	return math.Hypot(pt.X-other.X, pt.Y-other.Y)
}

// IsZero reports whether both components are exactly zero.
func (pt Point) IsZero() bool { return pt.X == 0 && pt.Y == 0 }

func (pt Point) String() string { return fmt.Sprintf("(%g, %g)", pt.X, pt.Y) }

// Rect is an axis-aligned rectangle. Min is the lower-left corner, Max the
// upper-right; a well-formed Rect has Min.X < Max.X and Min.Y < Max.Y.
type Rect struct{ Min, Max Point }

// Rt is a convenience constructor for Rect.
func Rt(x0, y0, x1, y1 float64) Rect {
	return Rect{Point{x0, y0}, Point{x1, y1}}
}

// Valid reports whether the rectangle has positive area.
func (r Rect) Valid() bool {
	return r.Min.X < r.Max.X && r.Min.Y < r.Max.Y
}

// Contains reports whether pt lies inside the rectangle. Boundary points
// count as inside.
func (r Rect) Contains(pt Point) bool {
	return pt.X >= r.Min.X && pt.X <= r.Max.X && pt.Y >= r.Min.Y && pt.Y <= r.Max.Y
}

// Overlaps reports whether the interiors of two rectangles intersect.
// Rectangles that only share a boundary line do not overlap.
func (r Rect) Overlaps(other Rect) bool {
	return r.Min.X < other.Max.X && other.Min.X < r.Max.X &&
		r.Min.Y < other.Max.Y && other.Min.Y < r.Max.Y
}

func (r Rect) String() string {
	return fmt.Sprintf("[%s %s]", r.Min, r.Max)
}

// SegmentIntersects reports whether the closed segment a→b touches the
// rectangle, boundary included. Uses Liang-Barsky clipping; a degenerate
// segment (a == b) degrades to containment.
func (r Rect) SegmentIntersects(a, b Point) bool {
	d := b.Sub(a)
	if d.IsZero() {
		return r.Contains(a)
	}
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
		return true
	}
	return clip(-d.X, a.X-r.Min.X) &&
		clip(d.X, r.Max.X-a.X) &&
		clip(-d.Y, a.Y-r.Min.Y) &&
		clip(d.Y, r.Max.Y-a.Y) &&
		t0 <= t1
}

// Dir is one of the four legal move directions, in angle order starting
// from east. The order is fixed: direction selection, dot-product
// tie-breaking, and replay all depend on it.
type Dir int

// The four move directions.
const (
	East Dir = iota
	North
	West
	South
)

// Dirs lists all move directions in their canonical order.
var Dirs = [4]Dir{East, North, West, South}

var dirVecs = [4]Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

var dirNames = [4]string{"east", "north", "west", "south"}

// Vec returns the unit vector for the direction.
func (d Dir) Vec() Point { return dirVecs[d] }

func (d Dir) String() string {
	if d < 0 || int(d) >= len(dirNames) {
		return fmt.Sprintf("Dir(%d)", int(d))
	}
	return dirNames[d]
}

// Nearest returns the direction whose unit vector has the greatest dot
// product with v, ties broken by canonical direction order. Nearest of a
// zero vector is East; callers that care must check IsZero first.
func Nearest(v Point) Dir {
	best := East
	bestDot := v.Dot(dirVecs[East])
	for _, d := range Dirs[1:] {
		if dot := v.Dot(dirVecs[d]); dot > bestDot {
			best, bestDot = d, dot
		}
	}
	return best
}
