package post

import (
	"errors"
	"math"
	"testing"

	"github.com/treeview-data/eosim/internal/sensor"
	"github.com/treeview-data/eosim/internal/signal"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrBool(v bool) *bool        { return &v }
func ptrUint64(v uint64) *uint64  { return &v }

func quietConfig() *sensor.Config {
	return &sensor.Config{
		PRNUFactor:      ptrFloat(0),
		DarkCurrent:     ptrFloat(0),
		DarkFactor:      ptrFloat(0),
		OffsetFactor:    ptrFloat(0),
		ReadNoise:       ptrFloat(0),
		PhotonNoise:     ptrBool(false),
		SpatialResample: ptrBool(false),
	}
}

func scene(t *testing.T, s *sensor.TDICMOS, ny, nx int, level float64) *signal.Signal {
	t.Helper()
	bandAx, err := s.QE().Axis(signal.DimBand)
	if err != nil {
		t.Fatalf("band axis: %v", err)
	}
	yc := make([]float64, ny)
	xc := make([]float64, nx)
	for i := range yc {
		yc[i] = float64(i) * 2
	}
	for i := range xc {
		xc[i] = float64(i) * 2
	}
	sig, err := signal.Full(level,
		signal.CoordAxis(signal.DimY, yc),
		signal.CoordAxis(signal.DimX, xc),
		bandAx)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	return sig
}

func TestGenerateFlatFieldCorrectsPRNU(t *testing.T) {
	cfg := quietConfig()
	cfg.PRNUFactor = ptrFloat(0.05)
	s, err := sensor.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref := scene(t, s, 6, 6, 5)
	if err := s.Fit(ref); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	ff, err := GenerateFlatField(ref, s, 3)
	if err != nil {
		t.Fatalf("GenerateFlatField: %v", err)
	}
	if ff.HasAxis(signal.DimRepeat) {
		t.Fatal("flat field retains repeat axis")
	}
	if m := ff.Mean(); math.Abs(m-1) > 0.05 {
		t.Errorf("flat field mean = %g, want ~1", m)
	}

	// correcting the very frame the field was derived from must
	// flatten it completely
	raw, err := s.Transform(ref)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	dark, err := s.Transform(signal.ZerosLike(ref))
	if err != nil {
		t.Fatalf("dark Transform: %v", err)
	}
	corrected, err := FlatFieldCorrect(raw, dark, ff)
	if err != nil {
		t.Fatalf("FlatFieldCorrect: %v", err)
	}
	nb, _ := corrected.Len(signal.DimBand)
	for b := 0; b < nb; b++ {
		frame, err := corrected.Isel(signal.DimBand, b)
		if err != nil {
			t.Fatalf("Isel: %v", err)
		}
		if spread := frame.Max() - frame.Min(); spread > 1e-6*frame.Max() {
			t.Errorf("band %d still non-uniform after correction: spread %g", b, spread)
		}
	}
}

func TestNoiseCorrectedSignalSharedOffset(t *testing.T) {
	cfg := quietConfig()
	cfg.PRNUFactor = ptrFloat(0.05)
	imageSensor, err := sensor.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref := scene(t, imageSensor, 6, 6, 5)
	if err := imageSensor.Fit(ref); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	_, _, conu := imageSensor.FixedPattern()

	darkCfg := quietConfig()
	darkCfg.Seed = ptrUint64(77)
	darkSensor, err := sensor.NewWithSharedOffset(darkCfg, conu)
	if err != nil {
		t.Fatalf("NewWithSharedOffset: %v", err)
	}
	if err := darkSensor.Fit(ref); err != nil {
		t.Fatalf("dark Fit: %v", err)
	}

	ff, err := GenerateFlatField(ref, imageSensor, 3)
	if err != nil {
		t.Fatalf("GenerateFlatField: %v", err)
	}
	out, err := NoiseCorrectedSignal(ref, imageSensor, darkSensor, ff)
	if err != nil {
		t.Fatalf("NoiseCorrectedSignal: %v", err)
	}
	nb, _ := out.Len(signal.DimBand)
	for b := 0; b < nb; b++ {
		frame, err := out.Isel(signal.DimBand, b)
		if err != nil {
			t.Fatalf("Isel: %v", err)
		}
		if spread := frame.Max() - frame.Min(); spread > 1e-6*frame.Max() {
			t.Errorf("band %d non-uniform after noise correction: spread %g", b, spread)
		}
	}
}

func TestCalibrateRecoversLinearResponse(t *testing.T) {
	s, err := sensor.New(quietConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// radiance gradient along x so the regression sees a spread
	base := scene(t, s, 8, 8, 1)
	radiance, err := base.MapWithCoord(signal.DimX, func(v, x float64) float64 {
		return 2 + x/2
	})
	if err != nil {
		t.Fatalf("MapWithCoord: %v", err)
	}

	cal, err := Calibrate(radiance, s)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if len(cal.Bands) != 8 || len(cal.M) != 8 {
		t.Fatalf("calibration over %d bands, want 8", len(cal.Bands))
	}

	dn, err := s.Transform(radiance)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	recovered, err := cal.Apply(dn)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	truth, err := radiance.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	rmse, err := RMSE(recovered, truth)
	if err != nil {
		t.Fatalf("RMSE: %v", err)
	}
	if rmse > 0.05 {
		t.Errorf("DN-to-radiance RMSE = %g, want < 0.05 for a noiseless chain", rmse)
	}
}

func TestRMSE(t *testing.T) {
	a, _ := signal.NewFrom([]float64{1, 2, 3}, signal.Dim(signal.DimX, 3))
	b, _ := signal.NewFrom([]float64{1, 2, 7}, signal.Dim(signal.DimX, 3))
	got, err := RMSE(a, b)
	if err != nil {
		t.Fatalf("RMSE: %v", err)
	}
	want := math.Sqrt(16.0 / 3)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("RMSE = %g, want %g", got, want)
	}
}

func TestNDVIHyperspectral(t *testing.T) {
	wl := make([]float64, 0, 600)
	for w := 400; w < 1000; w++ {
		wl = append(wl, float64(w))
	}
	flat, _ := signal.Full(1, signal.Dim(signal.DimX, 2), signal.CoordAxis(signal.DimWavelength, wl))
	// vegetation-like spectrum: dark red, bright NIR
	sig, err := flat.MapWithCoord(signal.DimWavelength, func(v, w float64) float64 {
		if w < 700 {
			return 0.05
		}
		return 0.45
	})
	if err != nil {
		t.Fatalf("MapWithCoord: %v", err)
	}
	out, err := NDVI(sig)
	if err != nil {
		t.Fatalf("NDVI: %v", err)
	}
	if out.HasAxis(signal.DimWavelength) {
		t.Fatal("NDVI retains wavelength axis")
	}
	want := (0.45 - 0.05) / (0.45 + 0.05)
	for _, v := range out.Values() {
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("NDVI = %g, want %g", v, want)
		}
	}
}

func TestNDVIMultispectral(t *testing.T) {
	names := []string{"B2", "B3", "B4", "B8"}
	centres := []float64{492, 560, 664, 832}
	sig, _ := signal.NewFrom([]float64{0.1, 0.1, 0.1, 0.5},
		signal.BandAxis(names, centres))
	out, err := NDVI(sig)
	if err != nil {
		t.Fatalf("NDVI: %v", err)
	}
	want := (0.5 - 0.1) / (0.5 + 0.1)
	if got := out.Values()[0]; math.Abs(got-want) > 1e-9 {
		t.Errorf("NDVI = %g, want %g", got, want)
	}

	noNIR, _ := signal.NewFrom([]float64{0.1}, signal.BandAxis([]string{"B4"}, []float64{664}))
	if _, err := NDVI(noNIR); !errors.Is(err, signal.ErrAxisMissing) {
		t.Errorf("missing B8: err = %v, want ErrAxisMissing", err)
	}
}
