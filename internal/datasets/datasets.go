// Package datasets ships the reference curves used by the supported
// sensor models: detector quantum-efficiency spectra and published
// satellite spectral response functions. Datasets are embedded in the
// binary and addressed by string identifier; an unknown identifier is
// a configuration error surfaced at sensor construction time.
package datasets

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/treeview-data/eosim/internal/signal"
)

//go:embed data/*.csv
var dataFS embed.FS

// ErrUnknown reports a dataset identifier with no registered loader.
var ErrUnknown = errors.New("unknown dataset")

// Quantum-efficiency curve identifiers.
const (
	TDIQEBack = "TDI_QE_BACK"
	CCDQEDD   = "CCD_QE_DD_BACK"
	CCDQEStd  = "CCD_QE_STD_BACK"
)

// Spectral response set identifiers.
const (
	SRFSentinel2A = "SRF_SENTINEL_2A"
	SRFSentinel2B = "SRF_SENTINEL_2B"
)

// SolarVNIR is the top-of-atmosphere solar spectral irradiance
// (W m-2 nm-1) over the VNIR.
const SolarVNIR = "SOLAR_VNIR"

var qeFiles = map[string]string{
	TDIQEBack: "data/teledyne_cmos_qe_back.csv",
	CCDQEDD:   "data/ccd_qe_dd_back.csv",
	CCDQEStd:  "data/ccd_qe_std_back.csv",
}

var srfPrefixes = map[string]string{
	SRFSentinel2A: "S2A",
	SRFSentinel2B: "S2B",
}

// Names lists every dataset identifier.
func Names() []string {
	out := make([]string, 0, len(qeFiles)+len(srfPrefixes)+1)
	for k := range qeFiles {
		out = append(out, k)
	}
	for k := range srfPrefixes {
		out = append(out, k)
	}
	out = append(out, SolarVNIR)
	sort.Strings(out)
	return out
}

// QECurve loads a quantum-efficiency spectrum as a 1-D signal over
// wavelength (nm).
func QECurve(name string) (*signal.Signal, error) {
	path, ok := qeFiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return wavelengthCurve(name, path)
}

// SolarSpectrum loads the solar irradiance reference as a 1-D signal
// over wavelength (nm).
func SolarSpectrum() (*signal.Signal, error) {
	return wavelengthCurve(SolarVNIR, "data/solar_irradiance.csv")
}

// wavelengthCurve parses a two-column wavelength,value CSV.
func wavelengthCurve(name, path string) (*signal.Signal, error) {
	raw, err := dataFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	var wl, qe []float64
	for i, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("dataset %s: line %d: want wavelength,value", name, i+1)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: line %d: %w", name, i+1, err)
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: line %d: %w", name, i+1, err)
		}
		wl = append(wl, w)
		qe = append(qe, q)
	}
	sig, err := signal.NewFrom(qe, signal.CoordAxis(signal.DimWavelength, wl))
	if err != nil {
		return nil, err
	}
	sig.SetAttr("dataset", name)
	return sig, nil
}

// BandCurve is one band's response curve from a spectral response set.
type BandCurve struct {
	Band  string
	Curve *signal.Signal
}

// SRFSet loads a satellite's published spectral response functions as
// one curve per band, in the file's column order.
func SRFSet(name string) ([]BandCurve, error) {
	prefix, ok := srfPrefixes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	raw, err := dataFS.ReadFile("data/srf_sentinel_2.csv")
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("dataset %s: empty response table", name)
	}
	header := strings.Split(lines[0], ",")

	// Column names are SAT_..._BAND; first column is the wavelength grid.
	type column struct {
		idx  int
		band string
	}
	var cols []column
	for i, h := range header[1:] {
		parts := strings.Split(h, "_")
		if len(parts) < 2 || parts[0] != prefix {
			continue
		}
		cols = append(cols, column{idx: i + 1, band: parts[len(parts)-1]})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("dataset %s: no %s columns in response table", name, prefix)
	}

	wl := make([]float64, 0, len(lines)-1)
	resp := make([][]float64, len(cols))
	for i := range resp {
		resp[i] = make([]float64, 0, len(lines)-1)
	}
	for ln, line := range lines[1:] {
		fields := strings.Split(line, ",")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("dataset %s: line %d: %d fields, want %d", name, ln+2, len(fields), len(header))
		}
		w, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: line %d: %w", name, ln+2, err)
		}
		wl = append(wl, w)
		for i, c := range cols {
			v, err := strconv.ParseFloat(fields[c.idx], 64)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: line %d: %w", name, ln+2, err)
			}
			resp[i] = append(resp[i], v)
		}
	}

	out := make([]BandCurve, len(cols))
	for i, c := range cols {
		sig, err := signal.NewFrom(resp[i], signal.CoordAxis(signal.DimWavelength, wl))
		if err != nil {
			return nil, err
		}
		sig.SetAttr("dataset", name)
		sig.SetAttr("band", c.band)
		out[i] = BandCurve{Band: c.band, Curve: sig}
	}
	return out, nil
}
