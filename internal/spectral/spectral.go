// Package spectral convolves continuous-wavelength signals against
// named bandpass filters, discretising a hyperspectral cube into the
// band-indexed signal a multispectral instrument records.
package spectral

import (
	"errors"
	"fmt"

	"github.com/treeview-data/eosim/internal/monitoring"
	"github.com/treeview-data/eosim/internal/signal"
)

// ErrRange reports a signal whose wavelength span does not cover the
// required spectral support.
var ErrRange = errors.New("wavelength out of range")

// supportTolerance is the response level above which a band is
// considered sensitive; support limits are taken at this threshold so
// long near-zero tails do not inflate the coverage requirement.
const supportTolerance = 0.05

// SRF is one band's spectral response function, sampled on an
// ascending wavelength grid in nm.
type SRF struct {
	Name        string
	Centre      float64
	Wavelengths []float64
	Response    []float64
}

// Support returns the wavelength range over which the response exceeds
// the sensitivity threshold. ok is false for an all-dark curve.
func (s SRF) Support() (lo, hi float64, ok bool) {
	for i, r := range s.Response {
		if r <= supportTolerance {
			continue
		}
		if !ok {
			lo = s.Wavelengths[i]
			ok = true
		}
		hi = s.Wavelengths[i]
	}
	return lo, hi, ok
}

// At returns the response linearly interpolated at the given
// wavelength, clamped at the curve ends.
func (s SRF) At(wavelength float64) float64 {
	return interp(s.Wavelengths, s.Response, wavelength)
}

// Boxcar builds an idealised rectangular band on a 1 nm grid spanning
// 400-1000 nm: transmission inside centre±width/2, zero outside.
func Boxcar(name string, centre, width, transmission float64) SRF {
	const gridLo, gridHi = 400, 1000
	n := gridHi - gridLo
	wl := make([]float64, n)
	resp := make([]float64, n)
	lo, hi := centre-width/2, centre+width/2
	for i := range wl {
		wl[i] = float64(gridLo + i)
		if wl[i] >= lo && wl[i] <= hi {
			resp[i] = transmission
		}
	}
	return SRF{Name: name, Centre: centre, Wavelengths: wl, Response: resp}
}

// Response is an ordered set of band SRFs acting as one instrument
// spectral model.
type Response struct {
	Bands []SRF

	// Normalise divides each band's integrated response by the
	// integral of its SRF, yielding a band-weighted mean instead of an
	// integral.
	Normalise bool
}

// NewResponse builds a Response over the given bands, in order.
func NewResponse(bands ...SRF) *Response {
	return &Response{Bands: bands}
}

// BandNames returns the band names in declaration order.
func (r *Response) BandNames() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

// Transform convolves a continuous-wavelength signal with every band
// and integrates over wavelength, returning a band-indexed signal.
// Bands whose support is not fully covered by the signal's wavelength
// span are logged and skipped rather than aborting the call; if no
// band survives the result is ErrRange.
func (r *Response) Transform(sig *signal.Signal) (*signal.Signal, error) {
	ax, err := sig.Axis(signal.DimWavelength)
	if err != nil {
		return nil, err
	}
	if ax.Coords == nil {
		return nil, fmt.Errorf("%w: wavelength axis has no coordinates", signal.ErrShapeMismatch)
	}
	sigLo, sigHi := ax.Coords[0], ax.Coords[len(ax.Coords)-1]

	var (
		parts   []*signal.Signal
		names   []string
		centres []float64
	)
	for _, band := range r.Bands {
		lo, hi, ok := band.Support()
		if !ok {
			monitoring.Logf("spectral: band %s has no response above threshold, skipping", band.Name)
			continue
		}
		if sigLo > lo || sigHi < hi {
			monitoring.Logf("spectral: signal [%g, %g]nm does not cover band %s support [%g, %g]nm, skipping",
				sigLo, sigHi, band.Name, lo, hi)
			continue
		}
		clipped, err := sig.SelRange(signal.DimWavelength, lo, hi)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", band.Name, err)
		}
		// float rounding can leave tiny negative radiances upstream
		clipped = clipped.Apply(func(v float64) float64 {
			if v < 0 {
				return 0
			}
			return v
		})

		cax, err := clipped.Axis(signal.DimWavelength)
		if err != nil {
			return nil, err
		}
		w := trapezoidWeights(cax.Coords)
		norm := 0.0
		for i, wl := range cax.Coords {
			w[i] *= band.At(wl)
			norm += w[i]
		}
		out, err := clipped.WeightedSum(signal.DimWavelength, w)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", band.Name, err)
		}
		if r.Normalise && norm != 0 {
			out = out.Scale(1 / norm)
		}
		parts = append(parts, out)
		names = append(names, band.Name)
		centres = append(centres, band.Centre)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: signal [%g, %g]nm covers no band", ErrRange, sigLo, sigHi)
	}
	stacked, err := signal.Stack(signal.BandAxis(names, centres), parts...)
	if err != nil {
		return nil, err
	}
	stacked.MergeAttrs(sig.Attrs)
	return stacked, nil
}

// trapezoidWeights returns integration weights so that a weighted sum
// over the grid equals the trapezoid-rule integral.
func trapezoidWeights(xs []float64) []float64 {
	w := make([]float64, len(xs))
	if len(xs) < 2 {
		return w
	}
	w[0] = (xs[1] - xs[0]) / 2
	for i := 1; i < len(xs)-1; i++ {
		w[i] = (xs[i+1] - xs[i-1]) / 2
	}
	w[len(xs)-1] = (xs[len(xs)-1] - xs[len(xs)-2]) / 2
	return w
}

// interp linearly interpolates ys over ascending xs, clamping outside
// the grid.
func interp(xs, ys []float64, x float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			t := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + t*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}
