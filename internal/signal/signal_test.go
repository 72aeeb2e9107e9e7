package signal

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustNew(t *testing.T, axes ...Axis) *Signal {
	t.Helper()
	s, err := New(axes...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Dim("x", 0)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("zero-size axis should be rejected, got %v", err)
	}
	if _, err := New(Dim("x", 2), Dim("x", 3)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("duplicate axis should be rejected, got %v", err)
	}
	if _, err := New(Axis{Name: "wavelength", Size: 3, Coords: []float64{400, 500}}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("coord length mismatch should be rejected, got %v", err)
	}
}

func TestAtSetAtLayout(t *testing.T) {
	s := mustNew(t, Dim("y", 2), Dim("x", 3))
	s.SetAt(7, 1, 2)
	if got := s.At(1, 2); got != 7 {
		t.Fatalf("At(1,2) = %v, want 7", got)
	}
	// row-major: (1,2) is the last element
	if got := s.Values()[5]; got != 7 {
		t.Fatalf("flat[5] = %v, want 7", got)
	}
}

func TestCopyIsDeep(t *testing.T) {
	s := mustNew(t, Dim("x", 2))
	s.SetAttr("source", "unit-test")
	c := s.Copy()
	c.SetAt(9, 0)
	c.SetAttr("source", "copy")
	if s.At(0) != 0 {
		t.Error("copy shares data with original")
	}
	if s.Attrs["source"] != "unit-test" {
		t.Error("copy shares attrs with original")
	}
}

func TestMergeAttrsExistingKeysWin(t *testing.T) {
	s := mustNew(t, Dim("x", 1))
	s.SetAttr("stage", "late")
	s.MergeAttrs(map[string]string{"stage": "early", "input": "scene-1"})
	want := map[string]string{"stage": "late", "input": "scene-1"}
	if diff := cmp.Diff(want, s.Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineBroadcast(t *testing.T) {
	img, _ := NewFrom([]float64{
		1, 2, 3,
		4, 5, 6,
	}, Dim("y", 2), Dim("x", 3))

	column, _ := NewFrom([]float64{10, 20, 30}, Dim("x", 3))

	got, err := img.Add(column)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := []float64{11, 22, 33, 14, 25, 36}
	if diff := cmp.Diff(want, got.Values()); diff != "" {
		t.Errorf("broadcast add mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineRejectsUnknownAxis(t *testing.T) {
	img := mustNew(t, Dim("y", 2), Dim("x", 3))
	other := mustNew(t, Dim("band", 4))
	if _, err := img.Add(other); !errors.Is(err, ErrAxisMissing) {
		t.Errorf("want ErrAxisMissing, got %v", err)
	}
}

func TestCombineRejectsLengthMismatch(t *testing.T) {
	img := mustNew(t, Dim("x", 3))
	other := mustNew(t, Dim("x", 4))
	if _, err := img.Add(other); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("want ErrShapeMismatch, got %v", err)
	}
}

func TestCombineAlignsLabelledSubset(t *testing.T) {
	// a per-band operand keeps applying after upstream stages drop a band
	sig, _ := NewFrom([]float64{
		1, 2,
		3, 4,
	}, Dim("x", 2), BandAxis([]string{"B2", "B4"}, []float64{492, 664}))
	qe, _ := NewFrom([]float64{10, 20, 30},
		BandAxis([]string{"B2", "B3", "B4"}, []float64{492, 560, 664}))

	got, err := sig.Mul(qe)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	want := []float64{10, 60, 30, 120}
	if diff := cmp.Diff(want, got.Values()); diff != "" {
		t.Errorf("label-aligned multiply mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineAlignsLabelOrder(t *testing.T) {
	sig, _ := NewFrom([]float64{1, 1},
		BandAxis([]string{"B4", "B2"}, []float64{664, 492}))
	offset, _ := NewFrom([]float64{5, 7},
		BandAxis([]string{"B2", "B4"}, []float64{492, 664}))

	got, err := sig.Add(offset)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := []float64{8, 6}
	if diff := cmp.Diff(want, got.Values()); diff != "" {
		t.Errorf("label-order alignment mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineRejectsUnalignableLabels(t *testing.T) {
	sig, _ := NewFrom([]float64{1, 1},
		BandAxis([]string{"B2", "B9"}, []float64{492, 945}))
	qe, _ := NewFrom([]float64{10, 20},
		BandAxis([]string{"B2", "B4"}, []float64{492, 664}))
	if _, err := sig.Mul(qe); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("want ErrShapeMismatch, got %v", err)
	}
}

func TestMapWithCoord(t *testing.T) {
	s, _ := NewFrom([]float64{1, 1, 1}, CoordAxis("wavelength", []float64{400, 500, 600}))
	got, err := s.MapWithCoord("wavelength", func(v, wl float64) float64 { return v * wl })
	if err != nil {
		t.Fatalf("MapWithCoord: %v", err)
	}
	want := []float64{400, 500, 600}
	if diff := cmp.Diff(want, got.Values()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIsel(t *testing.T) {
	s, _ := NewFrom([]float64{
		1, 2,
		3, 4,
		5, 6,
	}, Dim("y", 3), Dim("x", 2))

	row, err := s.Isel("y", 1)
	if err != nil {
		t.Fatalf("Isel: %v", err)
	}
	if diff := cmp.Diff([]float64{3, 4}, row.Values()); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
	if row.HasAxis("y") {
		t.Error("selected axis should be dropped")
	}
}

func TestTransposeCanonical(t *testing.T) {
	s, _ := NewFrom([]float64{
		1, 2, 3,
		4, 5, 6,
	}, Dim("x", 2), Dim("y", 3))

	c, err := s.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if diff := cmp.Diff([]string{"y", "x"}, c.Dims()); diff != "" {
		t.Fatalf("dims mismatch (-want +got):\n%s", diff)
	}
	// original (x=1, y=2) must equal canonical (y=2, x=1)
	if s.At(1, 2) != c.At(2, 1) {
		t.Errorf("transpose moved values: %v != %v", s.At(1, 2), c.At(2, 1))
	}
}

func TestCanonicalMissingAxis(t *testing.T) {
	s := mustNew(t, Dim("y", 2), Dim("band", 3))
	if _, err := s.Canonical(); !errors.Is(err, ErrAxisMissing) {
		t.Errorf("want ErrAxisMissing for x, got %v", err)
	}
}

func TestMeanOver(t *testing.T) {
	s, _ := NewFrom([]float64{
		1, 2,
		3, 4,
	}, Dim("y", 2), Dim("x", 2))

	perX, err := s.MeanOver("y")
	if err != nil {
		t.Fatalf("MeanOver: %v", err)
	}
	if diff := cmp.Diff([]float64{2, 3}, perX.Values()); diff != "" {
		t.Errorf("mean mismatch (-want +got):\n%s", diff)
	}
	if got := s.Mean(); got != 2.5 {
		t.Errorf("Mean() = %v, want 2.5", got)
	}
}

func TestMedianOver(t *testing.T) {
	s, _ := NewFrom([]float64{
		5, 1,
		1, 2,
		2, 9,
	}, Dim("repeat", 3), Dim("x", 2))

	med, err := s.MedianOver("repeat")
	if err != nil {
		t.Fatalf("MedianOver: %v", err)
	}
	if diff := cmp.Diff([]float64{2, 2}, med.Values()); diff != "" {
		t.Errorf("median mismatch (-want +got):\n%s", diff)
	}
}

func TestWeightedSum(t *testing.T) {
	s, _ := NewFrom([]float64{1, 2, 3}, Dim("wavelength", 3))
	out, err := s.WeightedSum("wavelength", []float64{1, 0.5, 0})
	if err != nil {
		t.Fatalf("WeightedSum: %v", err)
	}
	if got := out.Values()[0]; got != 2 {
		t.Errorf("weighted sum = %v, want 2", got)
	}
	if _, err := s.WeightedSum("wavelength", []float64{1}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("want ErrShapeMismatch for bad weights, got %v", err)
	}
}

func TestCoarsenXY(t *testing.T) {
	s, _ := NewFrom([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, Dim("y", 3), Dim("x", 3))

	c, err := s.CoarsenXY(2)
	if err != nil {
		t.Fatalf("CoarsenXY: %v", err)
	}
	if diff := cmp.Diff([]int{2, 2}, c.Shape()); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
	// top-left block mean of {1,2,4,5} = 3; bottom-right is just {9}
	if got := c.At(0, 0); got != 3 {
		t.Errorf("block(0,0) = %v, want 3", got)
	}
	if got := c.At(1, 1); got != 9 {
		t.Errorf("block(1,1) = %v, want 9", got)
	}
}

func TestStack(t *testing.T) {
	a, _ := NewFrom([]float64{1, 2}, Dim("x", 2))
	b, _ := NewFrom([]float64{3, 4}, Dim("x", 2))
	out, err := Stack(BandAxis([]string{"B2", "B3"}, []float64{492, 560}), a, b)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 3, 2, 4}, out.Values()); diff != "" {
		t.Errorf("stack layout mismatch (-want +got):\n%s", diff)
	}
	ax, err := out.Axis("band")
	if err != nil {
		t.Fatalf("band axis: %v", err)
	}
	if ax.Labels[1] != "B3" || ax.Coords[0] != 492 {
		t.Errorf("band axis labels/coords wrong: %+v", ax)
	}
}

func TestRoundAndClip(t *testing.T) {
	s, _ := NewFrom([]float64{-1.2, 0.5, 2.7}, Dim("x", 3))
	r := s.Round()
	if diff := cmp.Diff([]float64{-1, 1, 3}, r.Values()); diff != "" {
		t.Errorf("round mismatch (-want +got):\n%s", diff)
	}
	cl := s.Clip(0, 1)
	if diff := cmp.Diff([]float64{0, 0.5, 1}, cl.Values()); diff != "" {
		t.Errorf("clip mismatch (-want +got):\n%s", diff)
	}
	if s.Values()[0] != -1.2 {
		t.Error("Round/Clip must not mutate the receiver")
	}
}

func TestMinMax(t *testing.T) {
	s, _ := NewFrom([]float64{3, -2, 7}, Dim("x", 3))
	if s.Min() != -2 || s.Max() != 7 {
		t.Errorf("Min/Max = %v/%v, want -2/7", s.Min(), s.Max())
	}
}
