package atmosphere

import (
	"fmt"
	"math"
)

// ClearSky builds a synthetic mid-latitude clear-sky lookup table on
// the given grids: a smoothed solar irradiance curve attenuated by a
// broadband transmittance, plus a Rayleigh-dominated path radiance.
// Intended for tests and for seeding a LUT store when no
// radiative-transfer run is available; real simulations should load a
// table produced by a proper RT code.
func ClearSky(wavelengths, rhos []float64) (*LUT, error) {
	radiance := make([][]float64, len(wavelengths))
	for i, wl := range wavelengths {
		irr := solarIrradiance(wl)
		trans := transmittance(wl)
		path := pathRadiance(wl)
		radiance[i] = make([]float64, len(rhos))
		for j, rho := range rhos {
			radiance[i][j] = irr/math.Pi*trans*trans*rho + path
		}
	}
	meta := map[string]string{
		"model":        "synthetic-clear-sky",
		"atmosphere":   "mid-latitude summer, rural aerosol",
		"solar_zenith": "0",
	}
	lut, err := NewLUT(wavelengths, rhos, radiance, meta)
	if err != nil {
		return nil, fmt.Errorf("clear-sky table: %w", err)
	}
	return lut, nil
}

// solarIrradiance approximates the top-of-atmosphere solar spectral
// irradiance (W m-2 nm-1) with a 5778 K blackbody scaled to ~1.9 at
// 500 nm, close to the ASTM G-173 shape over the VNIR.
func solarIrradiance(wlNm float64) float64 {
	const (
		h = 6.62607015e-34
		c = 2.99792458e8
		k = 1.380649e-23
		T = 5778.0
	)
	wl := wlNm * 1e-9
	b := 1 / (math.Exp(h*c/(wl*k*T)) - 1)
	planck := 2 * h * c * c / math.Pow(wl, 5) * b
	// normalise so 500nm lands at 1.9 W m-2 nm-1
	wl0 := 500e-9
	b0 := 1 / (math.Exp(h*c/(wl0*k*T)) - 1)
	planck0 := 2 * h * c * c / math.Pow(wl0, 5) * b0
	return 1.9 * planck / planck0
}

// transmittance is a one-way broadband clear-sky transmittance with a
// Rayleigh slope and a water-vapour dip near 940 nm.
func transmittance(wlNm float64) float64 {
	rayleigh := math.Exp(-0.1 * math.Pow(550/wlNm, 4))
	dip := 1 - 0.35*math.Exp(-math.Pow(wlNm-940, 2)/(2*20*20))
	return rayleigh * dip
}

// pathRadiance is the zero-reflectance at-sensor radiance
// (W m-2 sr-1 nm-1), dominated by Rayleigh scattering.
func pathRadiance(wlNm float64) float64 {
	return 0.012 * math.Pow(550/wlNm, 4)
}
