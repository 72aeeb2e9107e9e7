package post

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/treeview-data/eosim/internal/sensor"
	"github.com/treeview-data/eosim/internal/signal"
)

// Calibration holds per-band linear coefficients converting DN to
// apparent radiance: radiance = M*DN + C. Assumes the chain responds
// linearly, which holds away from saturation.
type Calibration struct {
	Bands []string
	M     []float64
	C     []float64
}

// Calibrate runs a calibration experiment: image the radiance scene,
// spatially downsample the truth to matching resolution, and regress
// radiance on DN per band.
func Calibrate(toaRadiance *signal.Signal, s *sensor.TDICMOS) (*Calibration, error) {
	dn, err := s.FitTransform(toaRadiance)
	if err != nil {
		return nil, err
	}
	truth, err := s.SpatialDownsample(toaRadiance)
	if err != nil {
		return nil, err
	}
	truth, err = truth.Canonical()
	if err != nil {
		return nil, err
	}

	bandAx, err := dn.Axis(signal.DimBand)
	if err != nil {
		return nil, err
	}
	cal := &Calibration{
		Bands: append([]string(nil), bandAx.Labels...),
		M:     make([]float64, bandAx.Size),
		C:     make([]float64, bandAx.Size),
	}
	for b := 0; b < bandAx.Size; b++ {
		x, err := dn.Isel(signal.DimBand, b)
		if err != nil {
			return nil, err
		}
		y, err := truth.Isel(signal.DimBand, b)
		if err != nil {
			return nil, err
		}
		if x.Size() != y.Size() {
			return nil, fmt.Errorf("%w: %d DN samples vs %d radiance samples in band %d",
				signal.ErrShapeMismatch, x.Size(), y.Size(), b)
		}
		alpha, beta := stat.LinearRegression(x.Values(), y.Values(), nil, false)
		cal.C[b] = alpha
		cal.M[b] = beta
	}
	return cal, nil
}

// Apply converts a DN frame to apparent radiance using the per-band
// coefficients. The frame's band count must match the calibration.
func (c *Calibration) Apply(dn *signal.Signal) (*signal.Signal, error) {
	n, err := dn.Len(signal.DimBand)
	if err != nil {
		return nil, err
	}
	if n != len(c.M) {
		return nil, fmt.Errorf("%w: %d bands vs %d calibration coefficients", signal.ErrShapeMismatch, n, len(c.M))
	}
	centres := make([]float64, n)
	if ax, err := dn.Axis(signal.DimBand); err == nil && ax.Coords != nil {
		copy(centres, ax.Coords)
	}
	m, err := signal.NewFrom(c.M, signal.BandAxis(c.Bands, centres))
	if err != nil {
		return nil, err
	}
	cc, err := signal.NewFrom(c.C, signal.BandAxis(c.Bands, centres))
	if err != nil {
		return nil, err
	}
	out, err := dn.Mul(m)
	if err != nil {
		return nil, err
	}
	return out.Add(cc)
}
