package post

import (
	"fmt"

	"github.com/treeview-data/eosim/internal/signal"
)

// NDVI computes the Normalized Difference Vegetation Index,
// (NIR - red) / (NIR + red). Hyperspectral inputs average 650-680 nm
// for red and 790-899 nm for NIR; multispectral inputs use the B4 and
// B8 bands.
func NDVI(sig *signal.Signal) (*signal.Signal, error) {
	var red, nir *signal.Signal
	var err error
	switch {
	case sig.HasAxis(signal.DimWavelength):
		red, err = bandMean(sig, 650, 680)
		if err != nil {
			return nil, err
		}
		nir, err = bandMean(sig, 790, 899)
		if err != nil {
			return nil, err
		}
	case sig.HasAxis(signal.DimBand):
		red, err = selectBand(sig, "B4")
		if err != nil {
			return nil, err
		}
		nir, err = selectBand(sig, "B8")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q or %q", signal.ErrAxisMissing, signal.DimWavelength, signal.DimBand)
	}

	num, err := nir.Combine(red, func(ir, r float64) float64 { return ir - r })
	if err != nil {
		return nil, err
	}
	den, err := nir.Combine(red, func(ir, r float64) float64 { return ir + r })
	if err != nil {
		return nil, err
	}
	return num.Combine(den, safeDiv)
}

func bandMean(sig *signal.Signal, lo, hi float64) (*signal.Signal, error) {
	sel, err := sig.SelRange(signal.DimWavelength, lo, hi)
	if err != nil {
		return nil, err
	}
	return sel.MeanOver(signal.DimWavelength)
}

// selectBand picks one band by label and drops the band axis.
func selectBand(sig *signal.Signal, name string) (*signal.Signal, error) {
	ax, err := sig.Axis(signal.DimBand)
	if err != nil {
		return nil, err
	}
	for i, label := range ax.Labels {
		if label == name {
			return sig.Isel(signal.DimBand, i)
		}
	}
	return nil, fmt.Errorf("%w: band %q not present", signal.ErrAxisMissing, name)
}
