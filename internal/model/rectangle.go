package model

// Rectangle is an axis-aligned bounding box on a page, in PDF points.
// Coordinates live in the text extractor's space; all geometry in a run
// compares rectangles only within that one space, so the origin convention
// never needs translating. (X0,Y0) is the corner with the smaller
// coordinates, (X1,Y1) the larger.
type Rectangle struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rectangle) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the vertical extent of the rectangle.
func (r Rectangle) Height() float64 {
	return r.Y1 - r.Y0
}

// IsEmpty reports whether the rectangle has no area.
func (r Rectangle) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Intersects reports whether r overlaps other.
func (r Rectangle) Intersects(other Rectangle) bool {
	return r.X0 < other.X1 && other.X0 < r.X1 &&
		r.Y0 < other.Y1 && other.Y0 < r.Y1
}

// SameOrigin reports whether two rectangles start within tolerance points of
// each other. Text search returns near-identical boxes for the same match
// found under different case variations; those are duplicates, not distinct
// mentions.
func (r Rectangle) SameOrigin(other Rectangle, tolerance float64) bool {
	dx := r.X0 - other.X0
	dy := r.Y0 - other.Y0
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx < tolerance && dy < tolerance
}

// Union returns the smallest rectangle containing both r and other.
func (r Rectangle) Union(other Rectangle) Rectangle {
	out := r
	if other.X0 < out.X0 {
		out.X0 = other.X0
	}
	if other.Y0 < out.Y0 {
		out.Y0 = other.Y0
	}
	if other.X1 > out.X1 {
		out.X1 = other.X1
	}
	if other.Y1 > out.Y1 {
		out.Y1 = other.Y1
	}
	return out
}
