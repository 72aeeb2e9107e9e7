// Package atmosphere converts surface reflectance to at-sensor
// radiance through a precomputed radiative-transfer lookup table. The
// table is generated offline (see cmd/lutbuild); this package only
// interpolates it, strictly within its sampled range.
package atmosphere

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/treeview-data/eosim/internal/signal"
)

// ErrRange reports a wavelength or reflectance outside the table's
// sampled range. No extrapolation is ever attempted.
var ErrRange = errors.New("outside lookup table range")

// LUT maps (wavelength, surface reflectance) to at-sensor radiance.
// Both grids are ascending; Radiance is indexed [wavelength][rho].
type LUT struct {
	Wavelength []float64
	Rho        []float64
	Radiance   [][]float64
	Meta       map[string]string
}

// NewLUT validates and wraps a lookup table.
func NewLUT(wavelength, rho []float64, radiance [][]float64, meta map[string]string) (*LUT, error) {
	if len(wavelength) == 0 || len(rho) == 0 {
		return nil, fmt.Errorf("%w: empty grid", signal.ErrShapeMismatch)
	}
	if !sort.Float64sAreSorted(wavelength) || !sort.Float64sAreSorted(rho) {
		return nil, fmt.Errorf("%w: grids must be ascending", signal.ErrShapeMismatch)
	}
	if len(radiance) != len(wavelength) {
		return nil, fmt.Errorf("%w: %d radiance rows for %d wavelengths", signal.ErrShapeMismatch, len(radiance), len(wavelength))
	}
	for i, row := range radiance {
		if len(row) != len(rho) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d reflectances", signal.ErrShapeMismatch, i, len(row), len(rho))
		}
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return &LUT{Wavelength: wavelength, Rho: rho, Radiance: radiance, Meta: meta}, nil
}

// Transform converts a reflectance signal into an at-sensor radiance
// signal. The signal's wavelength span and every reflectance value must
// lie inside the table's range; interpolation is bilinear (nearest when
// a grid has a single sample). Negative interpolated radiances clamp
// to zero. Input metadata is preserved and extended with the table's
// provenance.
func (l *LUT) Transform(sig *signal.Signal) (*signal.Signal, error) {
	if err := l.checkWavelengthSpan(sig); err != nil {
		return nil, err
	}
	rhoLo, rhoHi := l.Rho[0], l.Rho[len(l.Rho)-1]
	if min := sig.Min(); min < rhoLo {
		return nil, fmt.Errorf("%w: reflectance %g below table minimum %g", ErrRange, min, rhoLo)
	}
	if max := sig.Max(); max > rhoHi {
		return nil, fmt.Errorf("%w: reflectance %g above table maximum %g", ErrRange, max, rhoHi)
	}

	out, err := sig.MapWithCoord(spectralDim(sig), func(rho, wl float64) float64 {
		v := l.lookup(wl, rho)
		if v < 0 {
			return 0
		}
		return v
	})
	if err != nil {
		return nil, err
	}
	l.stamp(out)
	return out, nil
}

// InverseTransform converts at-sensor radiance back to surface
// reflectance by inverting the table's monotonic radiance(rho) curve at
// each wavelength. Used for flat-field correction and regression
// checks.
func (l *LUT) InverseTransform(sig *signal.Signal) (*signal.Signal, error) {
	if err := l.checkWavelengthSpan(sig); err != nil {
		return nil, err
	}
	var rangeErr error
	out, err := sig.MapWithCoord(spectralDim(sig), func(radiance, wl float64) float64 {
		rho, err := l.invert(wl, radiance)
		if err != nil && rangeErr == nil {
			rangeErr = err
		}
		return rho
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}
	l.stamp(out)
	return out, nil
}

func (l *LUT) checkWavelengthSpan(sig *signal.Signal) error {
	ax, err := sig.Axis(spectralDim(sig))
	if err != nil {
		return err
	}
	if ax.Coords == nil {
		return fmt.Errorf("%w: spectral axis has no coordinates", signal.ErrShapeMismatch)
	}
	for _, wl := range ax.Coords {
		if wl < l.Wavelength[0] {
			return fmt.Errorf("%w: wavelength %gnm below table minimum %gnm", ErrRange, wl, l.Wavelength[0])
		}
		if wl > l.Wavelength[len(l.Wavelength)-1] {
			return fmt.Errorf("%w: wavelength %gnm above table maximum %gnm", ErrRange, wl, l.Wavelength[len(l.Wavelength)-1])
		}
	}
	return nil
}

func spectralDim(sig *signal.Signal) string {
	if sig.HasAxis(signal.DimWavelength) {
		return signal.DimWavelength
	}
	return signal.DimBand
}

func (l *LUT) stamp(sig *signal.Signal) {
	meta, err := json.Marshal(l.Meta)
	if err != nil {
		sig.SetAttr("atmospheric_simulation", "<unserializable>")
		return
	}
	sig.SetAttr("atmospheric_simulation", string(meta))
}

// lookup bilinearly interpolates the table at (wl, rho).
func (l *LUT) lookup(wl, rho float64) float64 {
	wi, wt := gridPos(l.Wavelength, wl)
	ri, rt := gridPos(l.Rho, rho)
	r0 := l.Radiance[wi][ri]*(1-rt) + l.Radiance[wi][min(ri+1, len(l.Rho)-1)]*rt
	w1 := min(wi+1, len(l.Wavelength)-1)
	r1 := l.Radiance[w1][ri]*(1-rt) + l.Radiance[w1][min(ri+1, len(l.Rho)-1)]*rt
	return r0*(1-wt) + r1*wt
}

// invert solves radiance(rho) = target at the given wavelength. The
// curve must be monotonically increasing in rho; targets outside the
// curve's span are a range error.
func (l *LUT) invert(wl, target float64) (float64, error) {
	wi, wt := gridPos(l.Wavelength, wl)
	w1 := min(wi+1, len(l.Wavelength)-1)
	curve := make([]float64, len(l.Rho))
	for i := range curve {
		curve[i] = l.Radiance[wi][i]*(1-wt) + l.Radiance[w1][i]*wt
	}
	if target < curve[0] {
		return 0, fmt.Errorf("%w: radiance %g below table minimum %g at %gnm", ErrRange, target, curve[0], wl)
	}
	if target > curve[len(curve)-1] {
		return 0, fmt.Errorf("%w: radiance %g above table maximum %g at %gnm", ErrRange, target, curve[len(curve)-1], wl)
	}
	for i := 1; i < len(curve); i++ {
		if target <= curve[i] {
			if curve[i] == curve[i-1] {
				return l.Rho[i-1], nil
			}
			t := (target - curve[i-1]) / (curve[i] - curve[i-1])
			return l.Rho[i-1] + t*(l.Rho[i]-l.Rho[i-1]), nil
		}
	}
	return l.Rho[len(l.Rho)-1], nil
}

// gridPos locates x on an ascending grid: the lower bracket index and
// the fractional position towards the next sample. Single-sample grids
// degrade to nearest-neighbour.
func gridPos(grid []float64, x float64) (int, float64) {
	if len(grid) == 1 || x <= grid[0] {
		return 0, 0
	}
	if x >= grid[len(grid)-1] {
		return len(grid) - 2, 1
	}
	i := sort.SearchFloat64s(grid, x)
	if grid[i] == x {
		return i, 0
	}
	i--
	return i, (x - grid[i]) / (grid[i+1] - grid[i])
}
