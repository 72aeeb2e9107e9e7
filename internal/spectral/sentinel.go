package spectral

import (
	"fmt"

	"github.com/treeview-data/eosim/internal/datasets"
	"github.com/treeview-data/eosim/internal/signal"
)

// Published band-centre wavelengths (nm) for the Sentinel-2 VNIR bands
// (COPE-GSEG-EOPG-TN-15-0007).
var sentinelCentres = map[string]float64{
	"B2":  492,
	"B3":  560,
	"B4":  664,
	"B5":  704,
	"B6":  740,
	"B7":  780,
	"B8":  832,
	"B8A": 864,
}

// Sentinel2A models the Sentinel-2A VNIR instrument from its published
// spectral response functions.
func Sentinel2A() (*Response, error) {
	return fromDataset(datasets.SRFSentinel2A)
}

// Sentinel2B models the Sentinel-2B VNIR instrument.
func Sentinel2B() (*Response, error) {
	return fromDataset(datasets.SRFSentinel2B)
}

// TreeView models a hypothetical smallsat constellation instrument
// with spectral responses equivalent to the Sentinel-2A VNIR bands.
func TreeView() (*Response, error) {
	return fromDataset(datasets.SRFSentinel2A)
}

func fromDataset(name string) (*Response, error) {
	set, err := datasets.SRFSet(name)
	if err != nil {
		return nil, err
	}
	bands := make([]SRF, len(set))
	for i, bc := range set {
		ax, err := bc.Curve.Axis(signal.DimWavelength)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", bc.Band, err)
		}
		centre, ok := sentinelCentres[bc.Band]
		if !ok {
			return nil, fmt.Errorf("%w: no centre wavelength for band %q", datasets.ErrUnknown, bc.Band)
		}
		bands[i] = SRF{
			Name:        bc.Band,
			Centre:      centre,
			Wavelengths: ax.Coords,
			Response:    bc.Curve.Values(),
		}
	}
	return NewResponse(bands...), nil
}
