package engine

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func naiveTriangular(src []int32, rowOff, colOff, diag, rows, cols int, upper bool) []int32 {
	out := make([]int32, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if keeps(rowOff+i, colOff+j, diag, upper) {
				out[i*cols+j] = src[i*cols+j]
			}
		}
	}
	return out
}

func TestStructuredCopyPaths(t *testing.T) {
	for diag := -5; diag <= 5; diag += 2 {
		for _, off := range [][2]int{{0, 0}, {0, 4}, {4, 0}, {3, 5}, {8, 1}} {
			for _, dims := range [][2]int{{4, 4}, {3, 5}, {5, 2}, {1, 7}} {
				for _, upper := range []bool{false, true} {
					rows, cols := dims[0], dims[1]
					name := fmt.Sprintf("diag=%d off=%v dims=%v upper=%v", diag, off, dims, upper)

					src := make([]int32, rows*cols)
					for k := range src {
						src[k] = int32(k + 1)
					}
					g := Classify(off[0], off[1], diag, rows, cols)
					want := naiveTriangular(src, off[0], off[1], diag, rows, cols, upper)

					structured := make([]int32, len(src))
					for k := range structured {
						structured[k] = -1 // every element must be written
					}
					StructuredCopy(structured, src, g, upper)

					masked := make([]int32, len(src))
					MaskedSelect(masked, src, g, upper)

					bitmask := make([]int32, len(src))
					ApplyMask(bitmask, src, NewDiagonalMask(g, upper))

					if diff := cmp.Diff(want, structured); diff != "" {
						t.Errorf("%s: StructuredCopy (-want +got):\n%s", name, diff)
					}
					if diff := cmp.Diff(want, masked); diff != "" {
						t.Errorf("%s: MaskedSelect (-want +got):\n%s", name, diff)
					}
					if diff := cmp.Diff(want, bitmask); diff != "" {
						t.Errorf("%s: ApplyMask (-want +got):\n%s", name, diff)
					}

					if g.ZeroSide(upper) {
						unread := make([]int32, len(src))
						for k := range unread {
							unread[k] = 7
						}
						StructuredCopy(unread, nil, g, upper)
						if diff := cmp.Diff(want, unread); diff != "" {
							t.Errorf("%s: zero side without source (-want +got):\n%s", name, diff)
						}
					}
				}
			}
		}
	}
}

func TestDiagonalMaskKeep(t *testing.T) {
	m := NewDiagonalMask(Classify(0, 0, 0, 3, 3), false)
	want := []bool{
		true, false, false,
		true, true, false,
		true, true, true,
	}
	for k, keep := range want {
		if m.Keep(k) != keep {
			t.Errorf("Keep(%d) = %v, want %v", k, m.Keep(k), keep)
		}
	}
}

func TestSlotStateString(t *testing.T) {
	for s, want := range map[SlotState]string{
		SlotEmpty:    "empty",
		SlotFilling:  "filling",
		SlotFull:     "full",
		SlotDraining: "draining",
		SlotState(9): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
