package datasets

import (
	"errors"
	"testing"

	"github.com/treeview-data/eosim/internal/signal"
)

func TestNamesListsEveryDataset(t *testing.T) {
	names := Names()
	want := []string{CCDQEDD, CCDQEStd, SolarVNIR, SRFSentinel2A, SRFSentinel2B, TDIQEBack}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], w)
		}
	}
}

func TestQECurve(t *testing.T) {
	for _, name := range []string{TDIQEBack, CCDQEDD, CCDQEStd} {
		sig, err := QECurve(name)
		if err != nil {
			t.Fatalf("QECurve(%s): %v", name, err)
		}
		ax, err := sig.Axis(signal.DimWavelength)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if ax.Coords[0] != 400 {
			t.Errorf("%s: first wavelength %v, want 400", name, ax.Coords[0])
		}
		for _, v := range sig.Values() {
			if v < 0 || v > 1 {
				t.Errorf("%s: efficiency %v outside [0, 1]", name, v)
			}
		}
		if sig.Attrs["dataset"] != name {
			t.Errorf("%s: dataset attr = %q", name, sig.Attrs["dataset"])
		}
	}
}

func TestQECurveUnknown(t *testing.T) {
	if _, err := QECurve("NO_SUCH_SET"); !errors.Is(err, ErrUnknown) {
		t.Errorf("unknown dataset: err = %v, want ErrUnknown", err)
	}
}

func TestSolarSpectrum(t *testing.T) {
	sig, err := SolarSpectrum()
	if err != nil {
		t.Fatalf("SolarSpectrum: %v", err)
	}
	ax, err := sig.Axis(signal.DimWavelength)
	if err != nil {
		t.Fatalf("wavelength axis: %v", err)
	}
	if ax.Coords[0] != 350 || ax.Coords[len(ax.Coords)-1] != 1050 {
		t.Errorf("span %v..%v, want 350..1050", ax.Coords[0], ax.Coords[len(ax.Coords)-1])
	}
	// the VNIR solar curve peaks near 500nm
	if max := sig.Max(); max < 1.8 || max > 2.0 {
		t.Errorf("peak irradiance %v, want ~1.9", max)
	}
	for _, v := range sig.Values() {
		if v <= 0 {
			t.Errorf("non-positive irradiance %v", v)
		}
	}
}

func TestSRFSet(t *testing.T) {
	for _, name := range []string{SRFSentinel2A, SRFSentinel2B} {
		set, err := SRFSet(name)
		if err != nil {
			t.Fatalf("SRFSet(%s): %v", name, err)
		}
		if len(set) != 8 {
			t.Fatalf("%s: %d bands, want 8", name, len(set))
		}
		if set[0].Band != "B2" || set[len(set)-1].Band != "B8A" {
			t.Errorf("%s: band order %s..%s, want B2..B8A", name, set[0].Band, set[len(set)-1].Band)
		}
		for _, bc := range set {
			if max := bc.Curve.Max(); max < 0.9 || max > 1 {
				t.Errorf("%s/%s: peak response %v, want near 1", name, bc.Band, max)
			}
		}
	}
}

func TestSRFSetUnknown(t *testing.T) {
	if _, err := SRFSet("SRF_LANDSAT_9"); !errors.Is(err, ErrUnknown) {
		t.Errorf("unknown set: err = %v, want ErrUnknown", err)
	}
}
