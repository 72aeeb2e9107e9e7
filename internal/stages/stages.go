// Package stages implements the physical conversion chain of the
// imaging sensor simulation, from at-sensor radiant energy down to
// quantised digital numbers. Each function is one pipeline stage with a
// fixed physical contract (units and formula); downstream stages assume
// those contracts, so the formulas here must not drift.
//
// Unit-quantised quantities (electrons, DN) are rounded at the stage
// that produces them; clipped quantities (full well, ADC range) are
// clipped before any later stage consumes them.
package stages

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/treeview-data/eosim/internal/signal"
)

// Physical constants.
const (
	// PlanckC is h*c in J·m.
	PlanckC = 1.98644586e-25
	// Boltzmann is k_B in J/K.
	Boltzmann = 1.380649e-23
	// ElementaryCharge is q in C.
	ElementaryCharge = 1.602176634e-19

	nmToM        = 1e-9
	micron2ToM2  = 1e-12
	microvoltToV = 1e-6
)

// spectralCoordAxis returns the axis carrying per-sample wavelengths:
// the continuous wavelength axis when present, otherwise the band axis
// whose coordinates are band-centre wavelengths.
func spectralCoordAxis(sig *signal.Signal) (string, error) {
	if sig.HasAxis(signal.DimWavelength) {
		return signal.DimWavelength, nil
	}
	if sig.HasAxis(signal.DimBand) {
		return signal.DimBand, nil
	}
	return "", fmt.Errorf("%w: %q or %q", signal.ErrAxisMissing, signal.DimWavelength, signal.DimBand)
}

// EnergyToQuantity converts radiant energy (J) to photon quantity using
// E = hc/lambda, with wavelength coordinates in nm.
func EnergyToQuantity(sig *signal.Signal) (*signal.Signal, error) {
	dim, err := spectralCoordAxis(sig)
	if err != nil {
		return nil, err
	}
	return sig.MapWithCoord(dim, func(v, wlNm float64) float64 {
		return v * (wlNm * nmToM) / PlanckC
	})
}

// RadianceToIrradiance converts at-sensor radiance (W m-2 sr-1) to
// focal-plane irradiance through an ideal thin optic:
// E = L * (pi/4) * (D/f)^2. Nadir approximation; no foreshortening or
// cos^4 roll-off.
func RadianceToIrradiance(sig *signal.Signal, lensDiameter, focalLength float64) *signal.Signal {
	k := (math.Pi / 4) * (lensDiameter / focalLength) * (lensDiameter / focalLength)
	return sig.Scale(k)
}

// PhotonMean converts photon flux density (photons s-1 m-2) to the mean
// photon count collected by one pixel over the integration time.
// pixelArea is in micron^2.
func PhotonMean(sig *signal.Signal, pixelArea, integrationTime float64) *signal.Signal {
	return sig.Scale(integrationTime * pixelArea * micron2ToM2)
}

// AddPhotonNoise replaces each element with a Poisson draw using the
// element as mean, simulating photon shot noise. Shape and labels are
// preserved exactly.
func AddPhotonNoise(sig *signal.Signal, src rand.Source) *signal.Signal {
	return sig.Apply(func(mean float64) float64 {
		return poisson(mean, src)
	})
}

// PhotonToElectron converts photon count to electron count via the
// quantum efficiency, which may be scalar-broadcast or a per-band
// array. Electrons are unit-quantised, so the result is rounded here.
func PhotonToElectron(sig *signal.Signal, qe *signal.Signal) (*signal.Signal, error) {
	out, err := sig.Mul(qe)
	if err != nil {
		return nil, err
	}
	return out.Round(), nil
}

// AddPRNU applies the persistent photo-response non-uniformity as a
// multiplicative pattern: e' = round(e + e*prnu).
func AddPRNU(sig *signal.Signal, prnu *signal.Signal) (*signal.Signal, error) {
	out, err := sig.Combine(prnu, func(e, p float64) float64 {
		return e + e*p
	})
	if err != nil {
		return nil, err
	}
	return out.Round(), nil
}

// AddDarkSignal adds thermally generated dark electrons: a fresh
// Poisson draw per call with mean darkCurrent*integrationTime,
// perturbed multiplicatively by the persistent DSNU pattern, then
// rounded.
func AddDarkSignal(sig *signal.Signal, darkCurrent, integrationTime float64, dsnu *signal.Signal, src rand.Source) (*signal.Signal, error) {
	mean := darkCurrent * integrationTime
	shot := sig.Apply(func(float64) float64 {
		return poisson(mean, src)
	})
	dark, err := shot.Combine(dsnu, func(d, f float64) float64 {
		return d + d*f
	})
	if err != nil {
		return nil, err
	}
	out, err := sig.Add(dark)
	if err != nil {
		return nil, err
	}
	return out.Round(), nil
}

// ElectronToVoltage converts charge to sense-node voltage with a fixed
// reference: v = vRef - e*gain. Electrons are clipped at the full-well
// capacity before conversion; optional Gaussian read noise (sigma in
// electrons) is added after the clip and the count re-rounded.
func ElectronToVoltage(sig *signal.Signal, vRef, senseNodeGain, fullWell, readNoise float64, src rand.Source) *signal.Signal {
	e := sig.Apply(func(v float64) float64 {
		return math.Min(v, fullWell)
	})
	if readNoise > 0 {
		dist := distuv.Normal{Mu: 0, Sigma: readNoise, Src: src}
		e = e.Apply(func(v float64) float64 {
			return math.Round(v + dist.Rand())
		})
	}
	return e.Apply(func(v float64) float64 {
		return vRef - v*senseNodeGain
	})
}

// ElectronToVoltageKTC is the reset-noise variant of ElectronToVoltage.
// Instead of Gaussian read noise it adds kTC noise in the voltage
// domain: log-normal samples with sigma^2 = kT/C, zero-meaned by
// subtracting the empirical sample mean. The sense-node capacitance is
// derived from the gain as C = q/gain.
func ElectronToVoltageKTC(sig *signal.Signal, vRef, senseNodeGain, fullWell, temperature float64, src rand.Source) *signal.Signal {
	e := sig.Apply(func(v float64) float64 {
		return math.Min(v, fullWell)
	})
	out := e.Apply(func(v float64) float64 {
		return vRef - v*senseNodeGain
	})

	capacitance := ElementaryCharge / senseNodeGain
	sigma := math.Sqrt(Boltzmann * temperature / capacitance)
	dist := distuv.LogNormal{Mu: 0, Sigma: sigma, Src: src}
	samples := make([]float64, out.Size())
	sum := 0.0
	for i := range samples {
		samples[i] = dist.Rand()
		sum += samples[i]
	}
	mean := sum / float64(len(samples))
	vals := out.Values()
	for i := range vals {
		vals[i] += samples[i] - mean
	}
	return out
}

// AddColumnOffset adds the persistent per-column offset pattern,
// broadcast across every other axis.
func AddColumnOffset(sig *signal.Signal, conu *signal.Signal) (*signal.Signal, error) {
	return sig.Add(conu)
}

// VoltageToDN models a linear-response ADC: DN = round(adcGain *
// (vRef - v)), clipped to [0, 2^bitDepth - 1]. This is the last
// physically meaningful stage of the chain.
func VoltageToDN(sig *signal.Signal, vRef, adcGain float64, bitDepth int) *signal.Signal {
	maxDN := math.Pow(2, float64(bitDepth)) - 1
	return sig.Apply(func(v float64) float64 {
		dn := math.Round(adcGain * (vRef - v))
		if dn < 0 {
			return 0
		}
		if dn > maxDN {
			return maxDN
		}
		return dn
	})
}

// MicrovoltGain converts a sense-node gain quoted in uV/e- to V/e-.
func MicrovoltGain(gainMicrovolts float64) float64 {
	return gainMicrovolts * microvoltToV
}

// poisson draws one Poisson sample with the given mean. Non-positive
// means yield zero, matching the behaviour of a dark or unlit pixel.
func poisson(mean float64, src rand.Source) float64 {
	if mean <= 0 {
		return 0
	}
	return distuv.Poisson{Lambda: mean, Src: src}.Rand()
}
