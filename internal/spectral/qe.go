package spectral

import (
	"fmt"

	"github.com/treeview-data/eosim/internal/signal"
)

// QE is the quantum efficiency of a detector, supplied as a single
// scalar, a per-band list, or a continuous curve over wavelength. It is
// resolved once, at sensor configuration time, into a canonical
// per-band array.
type QE struct {
	kind    qeKind
	scalar  float64
	perBand []float64
	curveWl []float64
	curveV  []float64
}

type qeKind int

const (
	qeScalar qeKind = iota
	qePerBand
	qeCurve
)

// ScalarQE applies one efficiency to every band.
func ScalarQE(v float64) QE {
	return QE{kind: qeScalar, scalar: v}
}

// PerBandQE supplies one efficiency per band, in band order.
func PerBandQE(vals ...float64) QE {
	return QE{kind: qePerBand, perBand: vals}
}

// CurveQE supplies a continuous efficiency spectrum over an ascending
// wavelength grid in nm; each band's efficiency becomes the SRF-weighted
// mean of the curve over the band's support.
func CurveQE(wavelengths, values []float64) QE {
	return QE{kind: qeCurve, curveWl: wavelengths, curveV: values}
}

// CurveFromSignal builds a CurveQE from a 1-D wavelength-indexed
// signal, as produced by the dataset loaders.
func CurveFromSignal(sig *signal.Signal) (QE, error) {
	ax, err := sig.Axis(signal.DimWavelength)
	if err != nil {
		return QE{}, err
	}
	if ax.Coords == nil {
		return QE{}, fmt.Errorf("%w: wavelength axis has no coordinates", signal.ErrShapeMismatch)
	}
	if sig.Size() != ax.Size {
		return QE{}, fmt.Errorf("%w: efficiency curve must be 1-D over wavelength", signal.ErrShapeMismatch)
	}
	return CurveQE(ax.Coords, sig.Values()), nil
}

// Resolve computes the canonical per-band efficiency array for the
// given spectral response, as a band-indexed signal.
func (q QE) Resolve(r *Response) (*signal.Signal, error) {
	names := r.BandNames()
	centres := make([]float64, len(r.Bands))
	for i, b := range r.Bands {
		centres[i] = b.Centre
	}

	vals := make([]float64, len(r.Bands))
	switch q.kind {
	case qeScalar:
		for i := range vals {
			vals[i] = q.scalar
		}
	case qePerBand:
		if len(q.perBand) != len(r.Bands) {
			return nil, fmt.Errorf("%w: %d efficiencies for %d bands",
				signal.ErrShapeMismatch, len(q.perBand), len(r.Bands))
		}
		copy(vals, q.perBand)
	case qeCurve:
		if len(q.curveWl) != len(q.curveV) || len(q.curveWl) == 0 {
			return nil, fmt.Errorf("%w: malformed efficiency curve", signal.ErrShapeMismatch)
		}
		for i, band := range r.Bands {
			vals[i] = bandWeightedMean(band, q.curveWl, q.curveV)
		}
	}
	return signal.NewFrom(vals, signal.BandAxis(names, centres))
}

// bandWeightedMean integrates curve*srf over the band grid and divides
// by the integral of the srf, the mean efficiency seen through the band.
func bandWeightedMean(band SRF, curveWl, curveV []float64) float64 {
	w := trapezoidWeights(band.Wavelengths)
	num, den := 0.0, 0.0
	for i, wl := range band.Wavelengths {
		sw := band.Response[i] * w[i]
		num += interp(curveWl, curveV, wl) * sw
		den += sw
	}
	if den == 0 {
		return 0
	}
	return num / den
}
