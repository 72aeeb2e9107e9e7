package signal

import (
	"fmt"
	"math"
	"sort"
)

// Mean returns the arithmetic mean over every element.
func (s *Signal) Mean() float64 {
	if len(s.data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.data {
		sum += v
	}
	return sum / float64(len(s.data))
}

// Min returns the smallest element.
func (s *Signal) Min() float64 {
	min := math.Inf(1)
	for _, v := range s.data {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest element.
func (s *Signal) Max() float64 {
	max := math.Inf(-1)
	for _, v := range s.data {
		if v > max {
			max = v
		}
	}
	return max
}

// MeanOver reduces the listed axes by arithmetic mean, returning a
// Signal over the remaining axes.
func (s *Signal) MeanOver(dims ...string) (*Signal, error) {
	reduce := make([]bool, len(s.axes))
	for _, d := range dims {
		i := s.axisIndex(d)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrAxisMissing, d)
		}
		reduce[i] = true
	}

	keptAxes := make([]Axis, 0, len(s.axes))
	for i, ax := range s.axes {
		if !reduce[i] {
			keptAxes = append(keptAxes, ax.clone())
		}
	}
	out, err := New(keptAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	outStrides := out.strides()
	counts := make([]float64, len(out.data))
	idx := make([]int, len(s.axes))
	for flat := range s.data {
		dst := 0
		k := 0
		for i := range s.axes {
			if reduce[i] {
				continue
			}
			dst += idx[i] * outStrides[k]
			k++
		}
		out.data[dst] += s.data[flat]
		counts[dst]++
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < s.axes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	for i := range out.data {
		if counts[i] > 0 {
			out.data[i] /= counts[i]
		}
	}
	return out, nil
}

// MedianOver reduces the named axis by the per-position median.
func (s *Signal) MedianOver(dim string) (*Signal, error) {
	ai := s.axisIndex(dim)
	if ai < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, dim)
	}
	n := s.axes[ai].Size

	keptAxes := make([]Axis, 0, len(s.axes)-1)
	for i, ax := range s.axes {
		if i != ai {
			keptAxes = append(keptAxes, ax.clone())
		}
	}
	out, err := New(keptAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	st := s.strides()
	idx := make([]int, len(keptAxes))
	buf := make([]float64, n)
	for flat := range out.data {
		base := 0
		k := 0
		for i := range s.axes {
			if i == ai {
				continue
			}
			base += idx[k] * st[i]
			k++
		}
		for j := 0; j < n; j++ {
			buf[j] = s.data[base+j*st[ai]]
		}
		sort.Float64s(buf)
		if n%2 == 1 {
			out.data[flat] = buf[n/2]
		} else {
			out.data[flat] = (buf[n/2-1] + buf[n/2]) / 2
		}
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < keptAxes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// WeightedSum reduces the named axis by a weighted sum, e.g. a
// trapezoid integration over wavelength. len(w) must match the axis.
func (s *Signal) WeightedSum(dim string, w []float64) (*Signal, error) {
	ai := s.axisIndex(dim)
	if ai < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, dim)
	}
	if len(w) != s.axes[ai].Size {
		return nil, fmt.Errorf("%w: %d weights for axis %q (size %d)", ErrShapeMismatch, len(w), dim, s.axes[ai].Size)
	}

	keptAxes := make([]Axis, 0, len(s.axes)-1)
	for i, ax := range s.axes {
		if i != ai {
			keptAxes = append(keptAxes, ax.clone())
		}
	}
	out, err := New(keptAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	st := s.strides()
	idx := make([]int, len(keptAxes))
	for flat := range out.data {
		base := 0
		k := 0
		for i := range s.axes {
			if i == ai {
				continue
			}
			base += idx[k] * st[i]
			k++
		}
		sum := 0.0
		for j := 0; j < s.axes[ai].Size; j++ {
			sum += s.data[base+j*st[ai]] * w[j]
		}
		out.data[flat] = sum
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < keptAxes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// CoarsenXY reduces both spatial axes by block-averaging factor×factor
// cells. Partial edge blocks are averaged over the cells available.
// Spatial coordinates become the mean coordinate of each block.
func (s *Signal) CoarsenXY(factor int) (*Signal, error) {
	if factor < 1 {
		return nil, fmt.Errorf("%w: coarsen factor %d", ErrShapeMismatch, factor)
	}
	if factor == 1 {
		return s.Copy(), nil
	}
	xi := s.axisIndex(DimX)
	yi := s.axisIndex(DimY)
	if xi < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, DimX)
	}
	if yi < 0 {
		return nil, fmt.Errorf("%w: %q", ErrAxisMissing, DimY)
	}

	blockCoords := func(ax Axis) Axis {
		nb := (ax.Size + factor - 1) / factor
		out := Axis{Name: ax.Name, Size: nb}
		if ax.Coords != nil {
			out.Coords = make([]float64, nb)
			for b := 0; b < nb; b++ {
				sum, n := 0.0, 0
				for j := b * factor; j < (b+1)*factor && j < ax.Size; j++ {
					sum += ax.Coords[j]
					n++
				}
				out.Coords[b] = sum / float64(n)
			}
		}
		return out
	}

	newAxes := make([]Axis, len(s.axes))
	for i, ax := range s.axes {
		switch i {
		case xi, yi:
			newAxes[i] = blockCoords(ax)
		default:
			newAxes[i] = ax.clone()
		}
	}
	out, err := New(newAxes...)
	if err != nil {
		return nil, err
	}
	out.MergeAttrs(s.Attrs)

	counts := make([]float64, len(out.data))
	outStrides := out.strides()
	idx := make([]int, len(s.axes))
	for flat := range s.data {
		dst := 0
		for i := range s.axes {
			pos := idx[i]
			if i == xi || i == yi {
				pos /= factor
			}
			dst += pos * outStrides[i]
		}
		out.data[dst] += s.data[flat]
		counts[dst]++
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < s.axes[i].Size {
				break
			}
			idx[i] = 0
		}
	}
	for i := range out.data {
		if counts[i] > 0 {
			out.data[i] /= counts[i]
		}
	}
	return out, nil
}
