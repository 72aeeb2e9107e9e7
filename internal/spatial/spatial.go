// Package spatial implements the spatial response of the optic: an
// isotropic Gaussian point-spread function followed by block-mean
// resampling to the instrument's ground sample distance.
package spatial

import (
	"fmt"
	"math"

	"github.com/treeview-data/eosim/internal/signal"
)

// fwhmToSigma converts a full-width-at-half-maximum to a Gaussian sigma.
const fwhmToSigma = 2.355

// Resolution returns the ground resolution of the signal in metres,
// derived from the spacing of the x coordinates. Signals without
// spatial coordinates are treated as unit-resolution grids.
func Resolution(sig *signal.Signal) float64 {
	ax, err := sig.Axis(signal.DimX)
	if err != nil || len(ax.Coords) < 2 {
		return 1
	}
	return math.Abs(ax.Coords[1] - ax.Coords[0])
}

// GaussianIsotropic applies the PSF blur and downsamples to the ground
// sample distance. psfFWHM is the PSF full width at half maximum in
// ground units (metres); Sentinel-2 10 m bands are around 22 m. The
// signal must carry both spatial axes.
func GaussianIsotropic(sig *signal.Signal, psfFWHM, groundSampleDistance float64) (*signal.Signal, error) {
	for _, dim := range []string{signal.DimX, signal.DimY} {
		if !sig.HasAxis(dim) {
			return nil, fmt.Errorf("%w: %q", signal.ErrAxisMissing, dim)
		}
	}
	res := Resolution(sig)
	sigma := (psfFWHM / fwhmToSigma) / res

	out, err := gaussian1D(sig, signal.DimY, sigma)
	if err != nil {
		return nil, err
	}
	out, err = gaussian1D(out, signal.DimX, sigma)
	if err != nil {
		return nil, err
	}

	factor := int(groundSampleDistance / res)
	if factor < 1 {
		factor = 1
	}
	return out.CoarsenXY(factor)
}

// gaussian1D convolves along one axis with a truncated, renormalised
// Gaussian kernel.
func gaussian1D(sig *signal.Signal, dim string, sigma float64) (*signal.Signal, error) {
	if sigma <= 0 {
		return sig.Copy(), nil
	}
	n, err := sig.Len(dim)
	if err != nil {
		return nil, err
	}
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}

	// Move the convolution axis to the front so slices along it are
	// regular strides apart.
	work, err := sig.Transpose(dim)
	if err != nil {
		return nil, err
	}
	vals := work.Values()
	stride := len(vals) / n

	out := make([]float64, len(vals))
	for lane := 0; lane < stride; lane++ {
		for i := 0; i < n; i++ {
			sum, wsum := 0.0, 0.0
			for k := -radius; k <= radius; k++ {
				j := i + k
				if j < 0 || j >= n {
					continue
				}
				w := kernel[k+radius]
				sum += w * vals[j*stride+lane]
				wsum += w
			}
			out[i*stride+lane] = sum / wsum
		}
	}
	copy(vals, out)

	// Restore the original layout.
	return work.Transpose(sig.Dims()...)
}
