// Package sensor implements the simulated imaging instruments. A
// sensor model owns a stage pipeline and the persistent fixed-pattern
// noise sampled at fit time; the fit/transform lifecycle separates the
// once-per-instrument state from the fresh stochastic draws made on
// every transform call.
package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/treeview-data/eosim/internal/datasets"
	"github.com/treeview-data/eosim/internal/noise"
	"github.com/treeview-data/eosim/internal/pipeline"
	"github.com/treeview-data/eosim/internal/signal"
	"github.com/treeview-data/eosim/internal/spatial"
	"github.com/treeview-data/eosim/internal/spectral"
	"github.com/treeview-data/eosim/internal/stages"
)

// ErrNotFitted reports a transform attempted before fit.
var ErrNotFitted = errors.New("sensor model not fitted")

// responseRegistry maps config names to spectral response
// constructors. Selection is by explicit registry rather than dynamic
// dispatch so an unknown name fails at construction.
var responseRegistry = map[string]func() (*spectral.Response, error){
	"TREEVIEW":    spectral.TreeView,
	"SENTINEL_2A": spectral.Sentinel2A,
	"SENTINEL_2B": spectral.Sentinel2B,
}

// Derived holds the parameters computed from the raw configuration.
// Recomputed by UpdateDerived after any config change.
type Derived struct {
	// IntegrationTime is TDI rows divided by the line rate, seconds.
	IntegrationTime float64
	// DarkCurrent is the per-image-pixel dark current: the quoted
	// per-physical-pixel rate times the TDI row count, e-/s.
	DarkCurrent float64
	// SwathWidth is the imaged ground width, metres.
	SwathWidth float64
	// AngularFOV is the full cross-track field of view, radians.
	AngularFOV float64
	// FocalLength of the ideal rectilinear optic, metres.
	FocalLength float64
	// SenseNodeGain in V/e-.
	SenseNodeGain float64
	// ADCGain converts the voltage swing to counts, DN/V.
	ADCGain float64
}

// TDICMOS simulates a time-delay-integration CMOS line scanner. The
// input is a top-of-atmosphere radiance signal already integrated over
// the bandpass; the output is the digital number frame the instrument
// would record.
//
// The persistent random source drives fit-time pattern sampling; each
// transform call derives its own per-call source, so concurrent
// transforms on one fitted model are safe. A fit must not run
// concurrently with a transform.
type TDICMOS struct {
	cfg     *Config
	resp    *spectral.Response
	qe      *signal.Signal
	derived Derived

	dsnu, prnu, conu *signal.Signal
	sharedCONU       *signal.Signal
	fitted           bool

	fitSrc rand.Source

	mu       sync.Mutex
	callSeq  uint64
	captured map[string]*signal.Signal
}

// New builds a TDICMOS from configuration, resolving the spectral
// response and quantum efficiency immediately so bad names fail here
// rather than mid-simulation. A nil config uses all defaults.
func New(cfg *Config) (*TDICMOS, error) {
	return newSensor(cfg, nil)
}

// NewWithSharedOffset builds a TDICMOS whose column-offset pattern is
// the given array instead of a freshly sampled one. This is how a
// dark-region variant is derived from an imaging sensor: both read out
// through the same physical columns, so they share the CONU while DSNU
// and PRNU stay independent.
func NewWithSharedOffset(cfg *Config, conu *signal.Signal) (*TDICMOS, error) {
	if conu == nil {
		return nil, fmt.Errorf("%w: shared column offset pattern is nil", ErrConfig)
	}
	return newSensor(cfg, conu.Copy())
}

func newSensor(cfg *Config, sharedCONU *signal.Signal) (*TDICMOS, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := responseRegistry[cfg.GetSpectralResponse()]
	if !ok {
		return nil, fmt.Errorf("%w: unknown spectral_response %q", ErrConfig, cfg.GetSpectralResponse())
	}
	resp, err := build()
	if err != nil {
		return nil, fmt.Errorf("spectral response %s: %w", cfg.GetSpectralResponse(), err)
	}
	qe, err := resolveQE(cfg, resp)
	if err != nil {
		return nil, err
	}
	s := &TDICMOS{
		cfg:        cfg,
		resp:       resp,
		qe:         qe,
		sharedCONU: sharedCONU,
		fitSrc:     noise.NewSource(cfg.GetSeed()),
	}
	s.UpdateDerived()
	return s, nil
}

// resolveQE turns the configured quantum efficiency (per-band list,
// scalar, or named dataset curve) into the canonical per-band array.
func resolveQE(cfg *Config, resp *spectral.Response) (*signal.Signal, error) {
	if len(cfg.QEPerBand) > 0 {
		qe, err := spectral.PerBandQE(cfg.QEPerBand...).Resolve(resp)
		if err != nil {
			return nil, fmt.Errorf("%w: qe_per_band: %v", ErrConfig, err)
		}
		return qe, nil
	}
	if cfg.QEScalar != nil {
		return spectral.ScalarQE(*cfg.QEScalar).Resolve(resp)
	}
	curve, err := datasets.QECurve(cfg.GetQuantumEfficiency())
	if err != nil {
		return nil, fmt.Errorf("%w: quantum_efficiency: %w", ErrConfig, err)
	}
	q, err := spectral.CurveFromSignal(curve)
	if err != nil {
		return nil, err
	}
	return q.Resolve(resp)
}

// UpdateDerived recomputes every derived parameter from the current
// configuration. Call after mutating config values; the next transform
// uses the recomputed pipeline parameters.
func (s *TDICMOS) UpdateDerived() {
	cfg := s.cfg
	lineRate := cfg.GetSensorGroundSpeed() / cfg.GetGroundSampleDistance()
	swath := cfg.GetGroundSampleDistance() * float64(cfg.GetPixPerRow())
	afov := 2 * math.Atan2(swath/2, cfg.GetSensorAltitude())
	maxDN := math.Pow(2, float64(cfg.GetBitDepth())) - 1
	s.derived = Derived{
		IntegrationTime: float64(cfg.GetTDIRows()) / lineRate,
		DarkCurrent:     cfg.GetDarkCurrent() * float64(cfg.GetTDIRows()),
		SwathWidth:      swath,
		AngularFOV:      afov,
		// sensor width is quoted in mm
		FocalLength:   cfg.GetSensorWidth() / math.Tan(afov) / 1e3,
		SenseNodeGain: stages.MicrovoltGain(cfg.GetSenseNodeGain()),
		ADCGain:       maxDN / cfg.GetADCVRef(),
	}
}

// Derived returns the current derived parameter set.
func (s *TDICMOS) Derived() Derived { return s.derived }

// Response returns the instrument's spectral response model.
func (s *TDICMOS) Response() *spectral.Response { return s.resp }

// QE returns the resolved per-band quantum efficiency.
func (s *TDICMOS) QE() *signal.Signal { return s.qe.Copy() }

// Fitted reports whether the model holds fixed-pattern state.
func (s *TDICMOS) Fitted() bool { return s.fitted }

// Fit samples the persistent fixed-pattern noise from the fit signal's
// shape and holds it for the model's lifetime. The patterns are 1-D
// along the scan line (per column, per band): TDI integration averages
// each image pixel over a column of physical pixels, so the pattern
// repeats down-track.
func (s *TDICMOS) Fit(sig *signal.Signal) error {
	ref, err := s.onesRef(sig)
	if err != nil {
		return err
	}
	cfg, d := s.cfg, s.derived
	// DSNU uses the quoted per-physical-pixel dark current; the TDI
	// scaling is applied to the dark signal itself, not its pattern.
	s.dsnu = noise.DSNU(ref, cfg.GetDarkCurrent(), d.IntegrationTime, cfg.GetDarkFactor(), s.fitSrc)
	s.prnu = noise.PRNU(ref, cfg.GetPRNUFactor(), s.fitSrc)
	if s.sharedCONU != nil {
		s.conu = s.sharedCONU.Copy()
	} else {
		conu, err := noise.CONU(ref, cfg.GetOffsetFactor(), s.fitSrc)
		if err != nil {
			return err
		}
		s.conu = conu
	}
	s.fitted = true
	return nil
}

// onesRef reduces the fit signal to the output shape of one scan line:
// extra axes collapse to their first index, the spatial response is
// applied if configured, and the along-track axis drops to one row.
func (s *TDICMOS) onesRef(sig *signal.Signal) (*signal.Signal, error) {
	ref := sig.Copy()
	for _, dim := range ref.Dims() {
		switch dim {
		case signal.DimX, signal.DimY, signal.DimBand:
			continue
		}
		var err error
		ref, err = ref.Isel(dim, 0)
		if err != nil {
			return nil, err
		}
	}
	if s.cfg.GetSpatialResample() {
		var err error
		ref, err = spatial.GaussianIsotropic(ref, s.cfg.GetPSFFWHM(), s.cfg.GetGroundSampleDistance())
		if err != nil {
			return nil, err
		}
	}
	if ref.HasAxis(signal.DimY) {
		var err error
		ref, err = ref.Isel(signal.DimY, 0)
		if err != nil {
			return nil, err
		}
	}
	return signal.OnesLike(ref), nil
}

// Transform runs the simulation on a radiance signal using the fitted
// fixed-pattern state and fresh per-call stochastic draws. The output
// metadata carries the serialized configuration and a run identifier.
func (s *TDICMOS) Transform(sig *signal.Signal) (*signal.Signal, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	canon, err := sig.Canonical()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(s.stages(s.nextSource())...)
	if err != nil {
		return nil, err
	}
	p.CaptureOutputs = s.cfg.GetStoreSteps()
	out, err := p.Apply(canon)
	if err != nil {
		return nil, err
	}
	out.SetAttr("sensor_config", s.configJSON())
	out.SetAttr("run_id", uuid.NewString())
	if p.CaptureOutputs {
		s.mu.Lock()
		s.captured = p.CapturedOutputs()
		s.mu.Unlock()
	}
	return out, nil
}

// FitTransform fits on the signal and immediately transforms it, the
// common single-scene entry point.
func (s *TDICMOS) FitTransform(sig *signal.Signal) (*signal.Signal, error) {
	if err := s.Fit(sig); err != nil {
		return nil, err
	}
	return s.Transform(sig)
}

// SpatialDownsample applies only the optic's spatial response, without
// the radiometric chain. Used to compare sensor output against the
// scene it imaged at matching resolution. Identity when the sensor is
// configured without spatial resampling.
func (s *TDICMOS) SpatialDownsample(sig *signal.Signal) (*signal.Signal, error) {
	if !s.cfg.GetSpatialResample() {
		return sig.Copy(), nil
	}
	return spatial.GaussianIsotropic(sig, s.cfg.GetPSFFWHM(), s.cfg.GetGroundSampleDistance())
}

// StageNames lists the pipeline stages in execution order.
func (s *TDICMOS) StageNames() []string {
	p, err := pipeline.New(s.stages(noise.NewSource(0))...)
	if err != nil {
		return nil
	}
	return p.StageNames()
}

// Captured returns the per-stage outputs of the last transform, when
// store_steps is enabled.
func (s *TDICMOS) Captured() map[string]*signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// FixedPattern returns copies of the persistent noise arrays, in DSNU,
// PRNU, CONU order. Nil before fit.
func (s *TDICMOS) FixedPattern() (dsnu, prnu, conu *signal.Signal) {
	if !s.fitted {
		return nil, nil, nil
	}
	return s.dsnu.Copy(), s.prnu.Copy(), s.conu.Copy()
}

// nextSource derives a fresh random source for one transform call.
func (s *TDICMOS) nextSource() rand.Source {
	s.mu.Lock()
	s.callSeq++
	seq := s.callSeq
	s.mu.Unlock()
	return noise.NewSource(s.cfg.GetSeed() + seq*0x9e3779b97f4a7c15)
}

func (s *TDICMOS) configJSON() string {
	raw, err := json.Marshal(s.cfg)
	if err != nil {
		return "<unserializable>"
	}
	return string(raw)
}

// stages builds the physical conversion chain with the current derived
// parameters, fixed patterns, and the given per-call random source.
// Order is physically meaningful and must not change.
func (s *TDICMOS) stages(src rand.Source) []pipeline.Stage {
	cfg, d := s.cfg, s.derived
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	list := []pipeline.Stage{
		{
			Name: "radiant energy to quantity",
			Fn:   stages.EnergyToQuantity,
		},
		{
			Name: "radiance to irradiance",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.RadianceToIrradiance(sig, cfg.GetLensDiameter(), d.FocalLength), nil
			},
			Params: map[string]string{
				"lens_diameter": f(cfg.GetLensDiameter()),
				"focal_length":  f(d.FocalLength),
			},
		},
		{
			Name: "photon mean",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.PhotonMean(sig, cfg.GetPixelArea(), d.IntegrationTime), nil
			},
			Params: map[string]string{
				"pixel_area":       f(cfg.GetPixelArea()),
				"integration_time": f(d.IntegrationTime),
			},
		},
		{
			Name: "photon shot noise",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				if !cfg.GetPhotonNoise() {
					return sig, nil
				}
				return stages.AddPhotonNoise(sig, src), nil
			},
			Params: map[string]string{"enabled": strconv.FormatBool(cfg.GetPhotonNoise())},
		},
		{
			Name: "photon to electron",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.PhotonToElectron(sig, s.qe)
			},
			Params: map[string]string{"quantum_efficiency": s.qe.String()},
		},
		{
			Name: "photo response non-uniformity",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.AddPRNU(sig, s.prnu)
			},
			Params: map[string]string{"pattern": patternShape(s.prnu)},
		},
		{
			Name: "dark signal",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.AddDarkSignal(sig, d.DarkCurrent, d.IntegrationTime, s.dsnu, src)
			},
			Params: map[string]string{
				"dark_current":     f(d.DarkCurrent),
				"integration_time": f(d.IntegrationTime),
				"pattern":          patternShape(s.dsnu),
			},
		},
		{
			Name: "electron to voltage",
			Fn:   s.electronToVoltage(src),
			Params: map[string]string{
				"v_ref":           f(cfg.GetCCDVRef()),
				"sense_node_gain": f(d.SenseNodeGain),
				"full_well":       f(cfg.GetFullWell()),
			},
		},
		{
			Name: "column offset",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.AddColumnOffset(sig, s.conu)
			},
			Params: map[string]string{"pattern": patternShape(s.conu)},
		},
		{
			Name: "voltage to DN",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return stages.VoltageToDN(sig, cfg.GetCCDVRef(), d.ADCGain, cfg.GetBitDepth()), nil
			},
			Params: map[string]string{
				"v_ref":     f(cfg.GetCCDVRef()),
				"adc_gain":  f(d.ADCGain),
				"bit_depth": strconv.Itoa(cfg.GetBitDepth()),
			},
		},
	}

	if cfg.GetSpatialResample() {
		resample := pipeline.Stage{
			Name: "spatial resampling",
			Fn: func(sig *signal.Signal) (*signal.Signal, error) {
				return spatial.GaussianIsotropic(sig, cfg.GetPSFFWHM(), cfg.GetGroundSampleDistance())
			},
			Params: map[string]string{
				"psf_fwhm":               f(cfg.GetPSFFWHM()),
				"ground_sample_distance": f(cfg.GetGroundSampleDistance()),
			},
		}
		list = append(list[:1], append([]pipeline.Stage{resample}, list[1:]...)...)
	}
	return list
}

// electronToVoltage picks the configured voltage-noise model: Gaussian
// read noise, or kTC reset noise when use_reset_noise is set.
func (s *TDICMOS) electronToVoltage(src rand.Source) pipeline.Func {
	cfg, d := s.cfg, s.derived
	if cfg.GetUseResetNoise() {
		return func(sig *signal.Signal) (*signal.Signal, error) {
			return stages.ElectronToVoltageKTC(sig, cfg.GetCCDVRef(), d.SenseNodeGain,
				cfg.GetFullWell(), cfg.GetTemperature(), src), nil
		}
	}
	return func(sig *signal.Signal) (*signal.Signal, error) {
		return stages.ElectronToVoltage(sig, cfg.GetCCDVRef(), d.SenseNodeGain,
			cfg.GetFullWell(), cfg.GetReadNoise(), src), nil
	}
}

func patternShape(sig *signal.Signal) string {
	if sig == nil {
		return "<unfitted>"
	}
	return sig.String()
}
