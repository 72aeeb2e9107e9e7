package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfig reports a bad or missing configuration value at sensor
// construction time.
var ErrConfig = errors.New("invalid sensor configuration")

// Config holds the physical constants of one simulated instrument.
// The schema is plain JSON so a flight configuration can be versioned
// alongside mission documents. Fields omitted from the JSON retain
// their defaults, so partial configs are safe; the defaults describe a
// TDI CMOS line scanner on a 500 km sun-synchronous orbit.
type Config struct {
	// Platform
	SensorAltitude       *float64 `json:"sensor_altitude,omitempty"`        // m
	SensorGroundSpeed    *float64 `json:"sensor_ground_speed,omitempty"`    // m/s
	GroundSampleDistance *float64 `json:"ground_sample_distance,omitempty"` // m
	// Optic
	LensDiameter *float64 `json:"lens_diameter,omitempty"` // m
	PSFFWHM      *float64 `json:"psf_fwhm,omitempty"`      // ground metres
	// Detector geometry
	TDIRows     *int     `json:"tdi_rows,omitempty"`
	PixPerRow   *int     `json:"pix_per_row,omitempty"`
	SensorWidth *float64 `json:"sensor_width,omitempty"` // mm
	PixelArea   *float64 `json:"pixel_area,omitempty"`   // micron^2
	// Bandpass
	SpectralResponse  *string   `json:"spectral_response,omitempty"`  // registry name
	QuantumEfficiency *string   `json:"quantum_efficiency,omitempty"` // dataset name
	QEScalar          *float64  `json:"qe_scalar,omitempty"`          // overrides dataset
	QEPerBand         []float64 `json:"qe_per_band,omitempty"`        // overrides both
	// Charge domain
	FullWell     *float64 `json:"full_well,omitempty"`    // e-
	PRNUFactor   *float64 `json:"prnu_factor,omitempty"`
	DarkCurrent  *float64 `json:"dark_current,omitempty"` // e-/s/pixel
	DarkFactor   *float64 `json:"dark_factor,omitempty"`
	OffsetFactor *float64 `json:"offset_factor,omitempty"`
	// Voltage domain
	CCDVRef       *float64 `json:"ccd_vref,omitempty"`        // V
	SenseNodeGain *float64 `json:"sense_node_gain,omitempty"` // uV/e-
	ReadNoise     *float64 `json:"read_noise,omitempty"`      // e-
	Temperature   *float64 `json:"temperature,omitempty"`     // K, kTC variant
	// ADC
	ADCVRef  *float64 `json:"adc_vref,omitempty"` // V
	BitDepth *int     `json:"bit_depth,omitempty"`
	// Simulation
	Seed            *uint64 `json:"seed,omitempty"`
	StoreSteps      *bool   `json:"store_steps,omitempty"`
	SpatialResample *bool   `json:"spatial_resample,omitempty"`
	PhotonNoise     *bool   `json:"photon_noise,omitempty"`    // disable for deterministic runs
	UseResetNoise   *bool   `json:"use_reset_noise,omitempty"` // kTC instead of Gaussian read noise
}

// LoadConfig loads a Config from a JSON file. The file must have a
// .json extension and stay under the size cap.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: config file must have .json extension, got %q", ErrConfig, ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrConfig, fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the physical plausibility of every set field.
func (c *Config) Validate() error {
	positive := map[string]*float64{
		"sensor_altitude":        c.SensorAltitude,
		"sensor_ground_speed":    c.SensorGroundSpeed,
		"ground_sample_distance": c.GroundSampleDistance,
		"lens_diameter":          c.LensDiameter,
		"sensor_width":           c.SensorWidth,
		"pixel_area":             c.PixelArea,
		"full_well":              c.FullWell,
		"ccd_vref":               c.CCDVRef,
		"sense_node_gain":        c.SenseNodeGain,
		"adc_vref":               c.ADCVRef,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrConfig, name, *v)
		}
	}
	nonNegative := map[string]*float64{
		"psf_fwhm":      c.PSFFWHM,
		"prnu_factor":   c.PRNUFactor,
		"dark_current":  c.DarkCurrent,
		"dark_factor":   c.DarkFactor,
		"offset_factor": c.OffsetFactor,
		"read_noise":    c.ReadNoise,
	}
	for name, v := range nonNegative {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %g", ErrConfig, name, *v)
		}
	}
	if c.TDIRows != nil && *c.TDIRows < 1 {
		return fmt.Errorf("%w: tdi_rows must be at least 1, got %d", ErrConfig, *c.TDIRows)
	}
	if c.PixPerRow != nil && *c.PixPerRow < 1 {
		return fmt.Errorf("%w: pix_per_row must be at least 1, got %d", ErrConfig, *c.PixPerRow)
	}
	if c.BitDepth != nil && (*c.BitDepth < 1 || *c.BitDepth > 32) {
		return fmt.Errorf("%w: bit_depth must be in 1..32, got %d", ErrConfig, *c.BitDepth)
	}
	if c.Temperature != nil && *c.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be positive kelvin, got %g", ErrConfig, *c.Temperature)
	}
	return nil
}

// Getters with defaults. Every numeric here feeds exactly one stage's
// parameter set.

func (c *Config) GetSensorAltitude() float64 {
	if c.SensorAltitude == nil {
		return 5e5
	}
	return *c.SensorAltitude
}

func (c *Config) GetSensorGroundSpeed() float64 {
	if c.SensorGroundSpeed == nil {
		return 7000
	}
	return *c.SensorGroundSpeed
}

func (c *Config) GetGroundSampleDistance() float64 {
	if c.GroundSampleDistance == nil {
		return 2
	}
	return *c.GroundSampleDistance
}

func (c *Config) GetLensDiameter() float64 {
	if c.LensDiameter == nil {
		return 0.1
	}
	return *c.LensDiameter
}

func (c *Config) GetPSFFWHM() float64 {
	if c.PSFFWHM == nil {
		return 4
	}
	return *c.PSFFWHM
}

func (c *Config) GetTDIRows() int {
	if c.TDIRows == nil {
		return 32
	}
	return *c.TDIRows
}

func (c *Config) GetPixPerRow() int {
	if c.PixPerRow == nil {
		return 8000
	}
	return *c.PixPerRow
}

func (c *Config) GetSensorWidth() float64 {
	if c.SensorWidth == nil {
		return 82.2
	}
	return *c.SensorWidth
}

func (c *Config) GetPixelArea() float64 {
	if c.PixelArea == nil {
		return 100
	}
	return *c.PixelArea
}

func (c *Config) GetSpectralResponse() string {
	if c.SpectralResponse == nil {
		return "TREEVIEW"
	}
	return *c.SpectralResponse
}

func (c *Config) GetQuantumEfficiency() string {
	if c.QuantumEfficiency == nil {
		return "TDI_QE_BACK"
	}
	return *c.QuantumEfficiency
}

func (c *Config) GetFullWell() float64 {
	if c.FullWell == nil {
		return 3e4
	}
	return *c.FullWell
}

func (c *Config) GetPRNUFactor() float64 {
	if c.PRNUFactor == nil {
		return 0.01
	}
	return *c.PRNUFactor
}

func (c *Config) GetDarkCurrent() float64 {
	if c.DarkCurrent == nil {
		return 570
	}
	return *c.DarkCurrent
}

func (c *Config) GetDarkFactor() float64 {
	if c.DarkFactor == nil {
		return 0.01
	}
	return *c.DarkFactor
}

func (c *Config) GetOffsetFactor() float64 {
	if c.OffsetFactor == nil {
		return 0.001
	}
	return *c.OffsetFactor
}

func (c *Config) GetCCDVRef() float64 {
	if c.CCDVRef == nil {
		return 3.1
	}
	return *c.CCDVRef
}

func (c *Config) GetSenseNodeGain() float64 {
	if c.SenseNodeGain == nil {
		return 5
	}
	return *c.SenseNodeGain
}

func (c *Config) GetReadNoise() float64 {
	if c.ReadNoise == nil {
		return 20
	}
	return *c.ReadNoise
}

func (c *Config) GetTemperature() float64 {
	if c.Temperature == nil {
		return 300
	}
	return *c.Temperature
}

func (c *Config) GetADCVRef() float64 {
	if c.ADCVRef == nil {
		return 0.5
	}
	return *c.ADCVRef
}

func (c *Config) GetBitDepth() int {
	if c.BitDepth == nil {
		return 14
	}
	return *c.BitDepth
}

func (c *Config) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

func (c *Config) GetStoreSteps() bool {
	if c.StoreSteps == nil {
		return false
	}
	return *c.StoreSteps
}

func (c *Config) GetSpatialResample() bool {
	if c.SpatialResample == nil {
		return true
	}
	return *c.SpatialResample
}

func (c *Config) GetPhotonNoise() bool {
	if c.PhotonNoise == nil {
		return true
	}
	return *c.PhotonNoise
}

func (c *Config) GetUseResetNoise() bool {
	if c.UseResetNoise == nil {
		return false
	}
	return *c.UseResetNoise
}
