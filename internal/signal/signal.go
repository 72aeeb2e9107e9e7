// Package signal provides the labelled N-dimensional array that flows
// through the simulation pipeline. A Signal couples a flat float64
// buffer with named axes (spatial x/y in metres, spectral wavelength in
// nm or discretised band) and a string-keyed metadata record that is
// copied and extended, never mutated, as the signal moves through
// stages.
package signal

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known axis names. Spatial axes are always "x" and "y"; a
// continuous spectral axis is "wavelength" and a discretised one is
// "band".
const (
	DimX          = "x"
	DimY          = "y"
	DimWavelength = "wavelength"
	DimBand       = "band"
	DimScenario   = "scenario"
	DimRepeat     = "repeat"
)

var (
	// ErrAxisMissing reports that a required named axis is absent.
	ErrAxisMissing = errors.New("axis missing")
	// ErrShapeMismatch reports incompatible axis lengths or a data
	// buffer that does not match the declared shape.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Axis is one named dimension of a Signal. Coords holds physical
// coordinate values (wavelength in nm, spatial position in metres) and
// Labels holds human-readable names (band identifiers). Either may be
// nil; when both are set their lengths must agree with Size.
type Axis struct {
	Name   string
	Size   int
	Coords []float64
	Labels []string
}

// Dim declares an unlabelled axis of the given length.
func Dim(name string, size int) Axis {
	return Axis{Name: name, Size: size}
}

// CoordAxis declares an axis whose positions carry coordinate values.
func CoordAxis(name string, coords []float64) Axis {
	return Axis{Name: name, Size: len(coords), Coords: coords}
}

// BandAxis declares a discretised spectral axis with band names and
// centre wavelengths in nm.
func BandAxis(names []string, centres []float64) Axis {
	return Axis{Name: DimBand, Size: len(names), Coords: centres, Labels: names}
}

func (a Axis) clone() Axis {
	b := Axis{Name: a.Name, Size: a.Size}
	if a.Coords != nil {
		b.Coords = append([]float64(nil), a.Coords...)
	}
	if a.Labels != nil {
		b.Labels = append([]string(nil), a.Labels...)
	}
	return b
}

func (a Axis) validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: axis with empty name", ErrShapeMismatch)
	}
	if a.Size <= 0 {
		return fmt.Errorf("%w: axis %q has size %d", ErrShapeMismatch, a.Name, a.Size)
	}
	if a.Coords != nil && len(a.Coords) != a.Size {
		return fmt.Errorf("%w: axis %q has %d coords for size %d", ErrShapeMismatch, a.Name, len(a.Coords), a.Size)
	}
	if a.Labels != nil && len(a.Labels) != a.Size {
		return fmt.Errorf("%w: axis %q has %d labels for size %d", ErrShapeMismatch, a.Name, len(a.Labels), a.Size)
	}
	return nil
}

// Signal is a labelled N-D array of physical values. Data is row-major
// in axis declaration order. Attrs is the provenance trail; stages copy
// and extend it rather than mutating the input's map.
type Signal struct {
	axes  []Axis
	data  []float64
	Attrs map[string]string
}

// New allocates a zero-filled Signal with the given axes.
func New(axes ...Axis) (*Signal, error) {
	size := 1
	seen := map[string]bool{}
	for _, ax := range axes {
		if err := ax.validate(); err != nil {
			return nil, err
		}
		if seen[ax.Name] {
			return nil, fmt.Errorf("%w: duplicate axis %q", ErrShapeMismatch, ax.Name)
		}
		seen[ax.Name] = true
		size *= ax.Size
	}
	cloned := make([]Axis, len(axes))
	for i, ax := range axes {
		cloned[i] = ax.clone()
	}
	return &Signal{
		axes:  cloned,
		data:  make([]float64, size),
		Attrs: map[string]string{},
	}, nil
}

// NewFrom wraps an existing buffer. The buffer length must match the
// product of the axis sizes.
func NewFrom(data []float64, axes ...Axis) (*Signal, error) {
	s, err := New(axes...)
	if err != nil {
		return nil, err
	}
	if len(data) != len(s.data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), s.Shape())
	}
	copy(s.data, data)
	return s, nil
}

// Full allocates a Signal with every element set to v.
func Full(v float64, axes ...Axis) (*Signal, error) {
	s, err := New(axes...)
	if err != nil {
		return nil, err
	}
	for i := range s.data {
		s.data[i] = v
	}
	return s, nil
}

// OnesLike returns a Signal of ones with the same axes as s. Attrs are
// not carried over.
func OnesLike(s *Signal) *Signal {
	out := s.Copy()
	out.Attrs = map[string]string{}
	for i := range out.data {
		out.data[i] = 1
	}
	return out
}

// ZerosLike returns a zero Signal with the same axes as s.
func ZerosLike(s *Signal) *Signal {
	out := s.Copy()
	out.Attrs = map[string]string{}
	for i := range out.data {
		out.data[i] = 0
	}
	return out
}

// Copy returns a deep copy, metadata included.
func (s *Signal) Copy() *Signal {
	axes := make([]Axis, len(s.axes))
	for i, ax := range s.axes {
		axes[i] = ax.clone()
	}
	data := make([]float64, len(s.data))
	copy(data, s.data)
	attrs := make(map[string]string, len(s.Attrs))
	for k, v := range s.Attrs {
		attrs[k] = v
	}
	return &Signal{axes: axes, data: data, Attrs: attrs}
}

// Axes returns a copy of the axis descriptors in layout order.
func (s *Signal) Axes() []Axis {
	out := make([]Axis, len(s.axes))
	for i, ax := range s.axes {
		out[i] = ax.clone()
	}
	return out
}

// Axis returns the descriptor for the named axis.
func (s *Signal) Axis(name string) (Axis, error) {
	i := s.axisIndex(name)
	if i < 0 {
		return Axis{}, fmt.Errorf("%w: %q", ErrAxisMissing, name)
	}
	return s.axes[i].clone(), nil
}

// HasAxis reports whether the named axis is present.
func (s *Signal) HasAxis(name string) bool { return s.axisIndex(name) >= 0 }

func (s *Signal) axisIndex(name string) int {
	for i, ax := range s.axes {
		if ax.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the length of the named axis.
func (s *Signal) Len(name string) (int, error) {
	i := s.axisIndex(name)
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrAxisMissing, name)
	}
	return s.axes[i].Size, nil
}

// Shape returns the axis sizes in layout order.
func (s *Signal) Shape() []int {
	shape := make([]int, len(s.axes))
	for i, ax := range s.axes {
		shape[i] = ax.Size
	}
	return shape
}

// Dims returns the axis names in layout order.
func (s *Signal) Dims() []string {
	dims := make([]string, len(s.axes))
	for i, ax := range s.axes {
		dims[i] = ax.Name
	}
	return dims
}

// Size returns the total element count.
func (s *Signal) Size() int { return len(s.data) }

// Values exposes the underlying buffer in layout order. Callers must
// not grow or alias it beyond the Signal's lifetime.
func (s *Signal) Values() []float64 { return s.data }

// strides returns row-major strides for the current layout.
func (s *Signal) strides() []int {
	n := len(s.axes)
	st := make([]int, n)
	acc := 1
	for i := n - 1; i >= 0; i-- {
		st[i] = acc
		acc *= s.axes[i].Size
	}
	return st
}

// At returns the element at the given multi-index (layout order).
func (s *Signal) At(idx ...int) float64 {
	return s.data[s.flatIndex(idx)]
}

// SetAt stores v at the given multi-index (layout order).
func (s *Signal) SetAt(v float64, idx ...int) {
	s.data[s.flatIndex(idx)] = v
}

func (s *Signal) flatIndex(idx []int) int {
	if len(idx) != len(s.axes) {
		panic(fmt.Sprintf("signal: %d indices for %d axes", len(idx), len(s.axes)))
	}
	st := s.strides()
	flat := 0
	for i, v := range idx {
		flat += v * st[i]
	}
	return flat
}

// SetAttr records a metadata entry on this Signal instance.
func (s *Signal) SetAttr(key, value string) {
	if s.Attrs == nil {
		s.Attrs = map[string]string{}
	}
	s.Attrs[key] = value
}

// MergeAttrs copies entries from attrs that are not already present.
// Existing keys win, so downstream stages cannot erase provenance.
func (s *Signal) MergeAttrs(attrs map[string]string) {
	if s.Attrs == nil {
		s.Attrs = map[string]string{}
	}
	for k, v := range attrs {
		if _, ok := s.Attrs[k]; !ok {
			s.Attrs[k] = v
		}
	}
}

func (s *Signal) String() string {
	parts := make([]string, len(s.axes))
	for i, ax := range s.axes {
		parts[i] = fmt.Sprintf("%s:%d", ax.Name, ax.Size)
	}
	return fmt.Sprintf("Signal(%s)", strings.Join(parts, ", "))
}
