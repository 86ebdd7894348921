package tensor

import (
	"testing"
)

func TestComputeStrides(t *testing.T) {
	got := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strides = %v, want %v", got, want)
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b  Shape
		want  Shape
		bcast bool
		err   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{1, 1, 1}, Shape{4, 4}, Shape{1, 4, 4}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, bcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.err {
			if err == nil {
				t.Errorf("%v vs %v: expected error", tt.a, tt.b)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) || bcast != tt.bcast {
			t.Errorf("%v vs %v = %v, %v, %v; want %v, %v", tt.a, tt.b, got, bcast, err, tt.want, tt.bcast)
		}
	}
}

func TestDims(t *testing.T) {
	d := DimsOf(2, 3, 4)
	if d.Rank != 3 || d.Product(0, 3) != 24 || d.Product(1, 3) != 12 || d.Product(1, 1) != 1 {
		t.Errorf("unexpected dims %v", d)
	}
	if dot := d.Dot(DimsOf(12, 4, 1)); dot != 24+12+4 {
		t.Errorf("Dot = %d, want 40", dot)
	}
	if !d.Shape().Equal(Shape{2, 3, 4}) {
		t.Errorf("Shape() = %v", d.Shape())
	}
	if d.String() != "[2 3 4]" {
		t.Errorf("String() = %q", d.String())
	}
}

func TestDimsOfPanicsAboveMaxRank(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("DimsOf with 9 values should panic")
		}
	}()
	DimsOf(1, 2, 3, 4, 5, 6, 7, 8, 9)
}
