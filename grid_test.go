package hyqcore

import (
	"errors"
	"math"
	"testing"
)

func TestGridDescriptorShapeAndMapping(t *testing.T) {
	g, err := NewGridDescriptor(0, 100, 100, 100, 10, 10, "")
	if err != nil {
		t.Fatalf("NewGridDescriptor: %v", err)
	}

	rows, cols := g.Shape()
	if rows != 10 || cols != 10 {
		t.Fatalf("Shape() = (%d, %d), want (10, 10)", rows, cols)
	}

	tests := []struct {
		i, j int
		x, y float64
	}{
		{0, 0, 0, 100},
		{9, 9, 90, 10},
		{2, 7, 70, 80},
	}
	for _, tt := range tests {
		x, y := g.CellToWorld(tt.i, tt.j)
		if x != tt.x || y != tt.y {
			t.Errorf("CellToWorld(%d, %d) = (%v, %v), want (%v, %v)", tt.i, tt.j, x, y, tt.x, tt.y)
		}
		i, j, ok := g.WorldToCell(tt.x, tt.y)
		if !ok || i != tt.i || j != tt.j {
			t.Errorf("WorldToCell(%v, %v) = (%d, %d, %v), want (%d, %d, true)", tt.x, tt.y, i, j, ok, tt.i, tt.j)
		}
	}
}

func TestGridDescriptorCeilShape(t *testing.T) {
	g, err := NewGridDescriptor(500, 1000, 105, 42, 10, 20, "EPSG:25832")
	if err != nil {
		t.Fatalf("NewGridDescriptor: %v", err)
	}
	if rows, cols := g.Shape(); rows != 3 || cols != 11 {
		t.Errorf("Shape() = (%d, %d), want (3, 11)", rows, cols)
	}
	if g.CRS != "EPSG:25832" {
		t.Errorf("CRS = %q, want passthrough", g.CRS)
	}

	small, err := NewGridDescriptor(0, 0, 1, 1, 10, 10, "")
	if err != nil {
		t.Fatalf("NewGridDescriptor: %v", err)
	}
	if rows, cols := small.Shape(); rows != 1 || cols != 1 {
		t.Errorf("Shape() of sub-resolution grid = (%d, %d), want (1, 1)", rows, cols)
	}
}

func TestGridDescriptorRejectsInvalid(t *testing.T) {
	tests := []struct {
		name                                 string
		xMin, yMax, lenX, lenY, resX, resY float64
	}{
		{"zero res_x", 0, 0, 10, 10, 0, 1},
		{"negative res_y", 0, 0, 10, 10, 1, -1},
		{"zero len_x", 0, 0, 0, 10, 1, 1},
		{"nan origin", math.NaN(), 0, 10, 10, 1, 1},
		{"inf res", 0, 0, 10, 10, math.Inf(1), 1},
		{"ratio overflows int", 0, 1e300, 1e300, 1e300, 1e-300, 1e-300},
		{"ratio underflows", 0, 0, 1e-300, 10, 1e300, 1},
		{"too many rows", 0, 0, 1, MaxCells + 10, 1, 1},
		{"too many cells", 0, 0, 1 << 14, 1 << 14, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGridDescriptor(tt.xMin, tt.yMax, tt.lenX, tt.lenY, tt.resX, tt.resY, "")
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("error = %v, want ErrInvalidParameter", err)
			}
			var pe *ParameterError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParameterError", err)
			}
		})
	}
}

func TestWorldToCellOutside(t *testing.T) {
	g, _ := NewGridDescriptor(0, 100, 100, 100, 10, 10, "")
	for _, p := range [][2]float64{{-1, 50}, {50, 101}, {100, 50}, {50, 0}} {
		if _, _, ok := g.WorldToCell(p[0], p[1]); ok {
			t.Errorf("WorldToCell(%v, %v) reported inside", p[0], p[1])
		}
	}
}

func TestNearestCell(t *testing.T) {
	g, _ := NewGridDescriptor(0, 100, 100, 100, 10, 10, "")
	tests := []struct {
		x, y float64
		i, j int
	}{
		{50, 50, 5, 5},
		{54, 46, 5, 5},
		{56, 44, 6, 6},
		{-100, 500, 0, 0},
		{1000, -1000, 9, 9},
	}
	for _, tt := range tests {
		if i, j := g.NearestCell(tt.x, tt.y); i != tt.i || j != tt.j {
			t.Errorf("NearestCell(%v, %v) = (%d, %d), want (%d, %d)", tt.x, tt.y, i, j, tt.i, tt.j)
		}
	}
}

func TestTransform(t *testing.T) {
	g, _ := NewGridDescriptor(350000, 5600000, 1000, 500, 25, 50, "")
	want := Affine{350000, 25, 0, 5600000, 0, -50}
	if got := g.Transform(); got != want {
		t.Errorf("Transform() = %v, want %v", got, want)
	}
}

func TestDistanceField(t *testing.T) {
	g, _ := NewGridDescriptor(0, 100, 100, 100, 10, 10, "")
	d := DistanceField(50, 50, g)

	if rows, cols := d.Dims(); rows != 10 || cols != 10 {
		t.Fatalf("Dims() = (%d, %d), want (10, 10)", rows, cols)
	}
	if v := d.At(5, 5); v != 0 {
		t.Errorf("distance at well cell = %v, want 0", v)
	}
	if v, want := d.At(0, 0), math.Hypot(50, 50); math.Abs(v-want) > 1e-12 {
		t.Errorf("distance at (0,0) = %v, want %v", v, want)
	}
	if v := d.At(5, 9); v != 40 {
		t.Errorf("distance at (5,9) = %v, want 40", v)
	}
}

func TestOriginDistanceField(t *testing.T) {
	g, _ := NewGridDescriptor(1000, 2000, 50, 50, 10, 5, "")
	d := OriginDistanceField(g)
	if v := d.At(0, 0); v != 0 {
		t.Errorf("origin distance at (0,0) = %v, want 0", v)
	}
	if v, want := d.At(2, 3), math.Hypot(30, 10); math.Abs(v-want) > 1e-12 {
		t.Errorf("origin distance at (2,3) = %v, want %v", v, want)
	}
}
