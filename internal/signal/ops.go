package signal

import (
	"fmt"
	"math"
)

// Apply returns a new Signal with f applied elementwise. Axes and
// metadata are carried over from the receiver.
func (s *Signal) Apply(f func(float64) float64) *Signal {
	out := s.Copy()
	for i, v := range out.data {
		out.data[i] = f(v)
	}
	return out
}

// Round returns a copy rounded to the nearest integer value. Electron
// counts and digital numbers are unit-quantised, so rounding happens at
// those stages and nowhere else.
func (s *Signal) Round() *Signal {
	return s.Apply(math.Round)
}

// Clip returns a copy with values limited to [lo, hi].
func (s *Signal) Clip(lo, hi float64) *Signal {
	return s.Apply(func(v float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	})
}

// Scale returns a copy multiplied by k.
func (s *Signal) Scale(k float64) *Signal {
	return s.Apply(func(v float64) float64 { return v * k })
}

// MapWithCoord applies f(value, coord) elementwise, where coord is the
// coordinate of the element's position along the named axis. The axis
// must carry coordinate values.
func (s *Signal) MapWithCoord(dim string, f func(v, coord float64) float64) (*Signal, error) {
	ai := s.axisIndex(dim)
	if ai < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, dim)
	}
	if s.axes[ai].Coords == nil {
		return nil, fmt.Errorf("%w: axis %q has no coordinate values", ErrShapeMismatch, dim)
	}
	out := s.Copy()
	st := s.strides()
	for i := range out.data {
		pos := (i / st[ai]) % s.axes[ai].Size
		out.data[i] = f(out.data[i], s.axes[ai].Coords[pos])
	}
	return out, nil
}

// Combine applies f(a, b) elementwise where b is broadcast against the
// receiver. Every axis of o must exist in s with the same length; axes
// of s absent from o are broadcast, and labelled axes align by label:
// the operand may carry a superset of the receiver's labels in any
// order, so a per-band operand still applies after upstream stages
// drop bands. The result has the receiver's axes and metadata.
func (s *Signal) Combine(o *Signal, f func(a, b float64) float64) (*Signal, error) {
	o, err := s.alignOperand(o)
	if err != nil {
		return nil, err
	}

	// Map each receiver axis to o's stride for that axis (0 when
	// broadcast).
	oStrides := o.strides()
	bStride := make([]int, len(s.axes))
	matched := 0
	for i, ax := range s.axes {
		oi := o.axisIndex(ax.Name)
		if oi < 0 {
			continue
		}
		if o.axes[oi].Size != ax.Size {
			return nil, fmt.Errorf("%w: axis %q is %d vs %d", ErrShapeMismatch, ax.Name, ax.Size, o.axes[oi].Size)
		}
		bStride[i] = oStrides[oi]
		matched++
	}
	if matched != len(o.axes) {
		for _, ax := range o.axes {
			if !s.HasAxis(ax.Name) {
				return nil, fmt.Errorf("%w: operand axis %q not present in target", ErrAxisMissing, ax.Name)
			}
		}
	}

	out := s.Copy()
	idx := make([]int, len(s.axes))
	for flat := range out.data {
		oFlat := 0
		for i := range idx {
			oFlat += idx[i] * bStride[i]
		}
		out.data[flat] = f(out.data[flat], o.data[oFlat])
		// odometer increment
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < s.axes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// alignOperand reindexes the operand's labelled axes to the receiver's
// label order. Axes where either side carries no labels are left for
// the positional size check.
func (s *Signal) alignOperand(o *Signal) (*Signal, error) {
	for _, ax := range s.axes {
		oi := o.axisIndex(ax.Name)
		if oi < 0 || ax.Labels == nil || o.axes[oi].Labels == nil {
			continue
		}
		if equalLabels(ax.Labels, o.axes[oi].Labels) {
			continue
		}
		var err error
		o, err = o.reindex(ax)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// reindex subsets and reorders the named labelled axis to match the
// target axis, label by label.
func (s *Signal) reindex(target Axis) (*Signal, error) {
	ai := s.axisIndex(target.Name)
	pos := make(map[string]int, s.axes[ai].Size)
	for i, label := range s.axes[ai].Labels {
		pos[label] = i
	}
	sel := make([]int, target.Size)
	for i, label := range target.Labels {
		p, ok := pos[label]
		if !ok {
			return nil, fmt.Errorf("%w: axis %q has no %q entry to align to", ErrShapeMismatch, target.Name, label)
		}
		sel[i] = p
	}

	newAxes := make([]Axis, len(s.axes))
	for i, ax := range s.axes {
		if i == ai {
			newAxes[i] = target.clone()
		} else {
			newAxes[i] = ax.clone()
		}
	}
	out, err := New(newAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	st := s.strides()
	idx := make([]int, len(newAxes))
	for flat := range out.data {
		src := 0
		for i := range idx {
			if i == ai {
				src += sel[idx[i]] * st[i]
			} else {
				src += idx[i] * st[i]
			}
		}
		out.data[flat] = s.data[src]
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < newAxes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

func equalLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Add returns s + o with broadcasting.
func (s *Signal) Add(o *Signal) (*Signal, error) {
	return s.Combine(o, func(a, b float64) float64 { return a + b })
}

// Mul returns s * o with broadcasting.
func (s *Signal) Mul(o *Signal) (*Signal, error) {
	return s.Combine(o, func(a, b float64) float64 { return a * b })
}

// Isel selects one index along the named axis and drops the axis,
// mirroring positional selection on a labelled array.
func (s *Signal) Isel(dim string, index int) (*Signal, error) {
	ai := s.axisIndex(dim)
	if ai < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, dim)
	}
	if index < 0 || index >= s.axes[ai].Size {
		return nil, fmt.Errorf("%w: index %d out of range for axis %q (size %d)", ErrShapeMismatch, index, dim, s.axes[ai].Size)
	}

	newAxes := make([]Axis, 0, len(s.axes)-1)
	for i, ax := range s.axes {
		if i != ai {
			newAxes = append(newAxes, ax.clone())
		}
	}
	out, err := New(newAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	st := s.strides()
	idx := make([]int, len(newAxes))
	for flat := range out.data {
		src := index * st[ai]
		k := 0
		for i := range s.axes {
			if i == ai {
				continue
			}
			src += idx[k] * st[i]
			k++
		}
		out.data[flat] = s.data[src]
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < newAxes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// SelRange selects the contiguous run of positions along dim whose
// coordinates lie within [lo, hi], dropping the rest. The axis must
// carry ascending coordinates; an empty selection is an error.
func (s *Signal) SelRange(dim string, lo, hi float64) (*Signal, error) {
	ai := s.axisIndex(dim)
	if ai < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, dim)
	}
	coords := s.axes[ai].Coords
	if coords == nil {
		return nil, fmt.Errorf("%w: axis %q has no coordinate values", ErrShapeMismatch, dim)
	}
	i0, i1 := -1, -1
	for i, c := range coords {
		if c < lo || c > hi {
			continue
		}
		if i0 < 0 {
			i0 = i
		}
		i1 = i
	}
	if i0 < 0 {
		return nil, fmt.Errorf("%w: no %q coordinates in [%g, %g]", ErrShapeMismatch, dim, lo, hi)
	}

	newAxes := make([]Axis, len(s.axes))
	for i, ax := range s.axes {
		newAxes[i] = ax.clone()
		if i == ai {
			newAxes[i].Size = i1 - i0 + 1
			if ax.Coords != nil {
				newAxes[i].Coords = append([]float64(nil), ax.Coords[i0:i1+1]...)
			}
			if ax.Labels != nil {
				newAxes[i].Labels = append([]string(nil), ax.Labels[i0:i1+1]...)
			}
		}
	}
	out, err := New(newAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	st := s.strides()
	idx := make([]int, len(newAxes))
	for flat := range out.data {
		src := i0 * st[ai]
		for i := range newAxes {
			src += idx[i] * st[i]
		}
		out.data[flat] = s.data[src]
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < newAxes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// Transpose reorders the layout so the listed axes come first, in the
// given order; unlisted axes keep their relative order afterwards.
func (s *Signal) Transpose(leading ...string) (*Signal, error) {
	perm := make([]int, 0, len(s.axes))
	taken := make([]bool, len(s.axes))
	for _, name := range leading {
		i := s.axisIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrAxisMissing, name)
		}
		if !taken[i] {
			perm = append(perm, i)
			taken[i] = true
		}
	}
	for i := range s.axes {
		if !taken[i] {
			perm = append(perm, i)
		}
	}

	newAxes := make([]Axis, len(perm))
	for j, i := range perm {
		newAxes[j] = s.axes[i].clone()
	}
	out, err := New(newAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	srcStrides := s.strides()
	idx := make([]int, len(newAxes))
	for flat := range out.data {
		src := 0
		for j, i := range perm {
			src += idx[j] * srcStrides[i]
		}
		out.data[flat] = s.data[src]
		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < newAxes[j].Size {
				break
			}
			idx[j] = 0
		}
	}
	return out, nil
}

// Canonical reorders the layout to the canonical (y, x, ...) form used
// by the sensor model. Both spatial axes must be present.
func (s *Signal) Canonical() (*Signal, error) {
	if !s.HasAxis(DimY) {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, DimY)
	}
	if !s.HasAxis(DimX) {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, DimX)
	}
	return s.Transpose(DimY, DimX)
}

// Stack concatenates equally-shaped signals along a new trailing axis.
// The new axis size must equal len(parts). Attrs are merged from the
// parts, first writer wins.
func Stack(axis Axis, parts ...*Signal) (*Signal, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: stack of zero signals", ErrShapeMismatch)
	}
	if axis.Size != len(parts) {
		return nil, fmt.Errorf("%w: stack axis %q size %d for %d parts", ErrShapeMismatch, axis.Name, axis.Size, len(parts))
	}
	base := parts[0]
	for _, p := range parts[1:] {
		if len(p.data) != len(base.data) || len(p.axes) != len(base.axes) {
			return nil, fmt.Errorf("%w: stacked signals differ in shape", ErrShapeMismatch)
		}
		for i := range p.axes {
			if p.axes[i].Name != base.axes[i].Name || p.axes[i].Size != base.axes[i].Size {
				return nil, fmt.Errorf("%w: stacked signals differ on axis %q", ErrShapeMismatch, p.axes[i].Name)
			}
		}
	}

	newAxes := make([]Axis, 0, len(base.axes)+1)
	for _, ax := range base.axes {
		newAxes = append(newAxes, ax.clone())
	}
	newAxes = append(newAxes, axis.clone())
	out, err := New(newAxes...)
	if err != nil {
		return nil, err
	}
	n := len(parts)
	for i, p := range parts {
		out.MergeAttrs(p.Attrs)
		for j, v := range p.data {
			out.data[j*n+i] = v
		}
	}
	return out, nil
}
