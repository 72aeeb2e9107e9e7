// Package noise generates the persistent fixed-pattern noise arrays of
// a sensor instance: dark-signal non-uniformity (DSNU), photo-response
// non-uniformity (PRNU) and column-offset non-uniformity (CONU). All
// three are sampled once at fit time from an explicit random source and
// are immutable for the lifetime of the sensor model; only a re-fit
// replaces them.
package noise

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/treeview-data/eosim/internal/signal"
)

// NewSource returns a seedable random source. Sensor models own one
// persistent source for fit-time sampling and derive fresh ones per
// transform call.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// DSNU samples the dark-signal non-uniformity pattern: log-normal with
// underlying-normal sigma = integrationTime * darkCurrent * darkFactor,
// de-meaned to a zero-mean multiplicative pattern. The log-normal shape
// suits short integration times (under ~100 s). A zero darkFactor
// yields an all-zero pattern.
func DSNU(ref *signal.Signal, darkCurrent, integrationTime, darkFactor float64, src rand.Source) *signal.Signal {
	out := signal.ZerosLike(ref)
	if darkFactor == 0 {
		return out
	}
	sigma := integrationTime * darkCurrent * darkFactor
	dist := distuv.LogNormal{Mu: 0, Sigma: sigma, Src: src}
	vals := out.Values()
	for i := range vals {
		vals[i] = dist.Rand()
	}
	mean := out.Mean()
	for i := range vals {
		vals[i] -= mean
	}
	return out
}

// PRNU samples the photo-response non-uniformity pattern: zero-mean
// normal with sigma = prnuFactor (the manufacturer-quoted factor is the
// standard deviation, not the variance).
func PRNU(ref *signal.Signal, prnuFactor float64, src rand.Source) *signal.Signal {
	out := signal.ZerosLike(ref)
	if prnuFactor == 0 {
		return out
	}
	dist := distuv.Normal{Mu: 0, Sigma: prnuFactor, Src: src}
	vals := out.Values()
	for i := range vals {
		vals[i] = dist.Rand()
	}
	return out
}

// CONU samples the column-offset non-uniformity: one zero-mean normal
// value per cross-track column, shared by every band since all bands
// read out through the same columns. ref may carry a band axis; the
// result is 1-D along x and broadcast-compatible with the image shape.
func CONU(ref *signal.Signal, offsetFactor float64, src rand.Source) (*signal.Signal, error) {
	cols := ref
	if cols.HasAxis(signal.DimBand) {
		var err error
		cols, err = cols.Isel(signal.DimBand, 0)
		if err != nil {
			return nil, err
		}
	}
	if !cols.HasAxis(signal.DimX) {
		return nil, fmt.Errorf("%w: %q", signal.ErrAxisMissing, signal.DimX)
	}
	out := signal.ZerosLike(cols)
	if offsetFactor == 0 {
		return out, nil
	}
	dist := distuv.Normal{Mu: 0, Sigma: offsetFactor, Src: src}
	vals := out.Values()
	for i := range vals {
		vals[i] = dist.Rand()
	}
	return out, nil
}
