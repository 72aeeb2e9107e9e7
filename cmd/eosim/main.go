// eosim runs the imaging-chain simulation end to end: surface
// reflectance through the atmosphere and the sensor to digital
// numbers, with PNG quicklooks and an optional histogram report.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/treeview-data/eosim/internal/atmosphere"
	"github.com/treeview-data/eosim/internal/lutdb"
	"github.com/treeview-data/eosim/internal/render"
	"github.com/treeview-data/eosim/internal/sensor"
	"github.com/treeview-data/eosim/internal/signal"
	"github.com/treeview-data/eosim/internal/version"
)

var (
	configPath  = flag.String("config", "", "Sensor configuration JSON (defaults apply when empty)")
	lutDBPath   = flag.String("lut-db", "", "Lookup-table database; a synthetic clear-sky table is generated when empty")
	lutName     = flag.String("lut", "clear-sky", "Name of the stored lookup table")
	lutCSV      = flag.String("lut-csv", "", "Lookup-table CSV export, overrides -lut-db")
	scenePath   = flag.String("scene", "", "Reflectance scene CSV (rows = along-track lines); synthetic scene when empty")
	sceneSize   = flag.Int("size", 64, "Synthetic scene edge length in pixels")
	reflectance = flag.Float64("reflectance", 0.3, "Synthetic scene base reflectance")
	outDir      = flag.String("out", "eosim-out", "Output directory for frames and reports")
	report      = flag.Bool("report", false, "Also write an HTML DN-histogram report")
	bins        = flag.Int("bins", 32, "Histogram bin count for the report")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("eosim", version.String())
		return
	}

	cfg := &sensor.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = sensor.LoadConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	imager, err := sensor.New(cfg)
	if err != nil {
		log.Fatalf("failed to build sensor: %v", err)
	}

	lut, err := loadLUT()
	if err != nil {
		log.Fatalf("failed to load lookup table: %v", err)
	}

	scene, err := loadScene(cfg.GetGroundSampleDistance())
	if err != nil {
		log.Fatalf("failed to build scene: %v", err)
	}

	spectrum, err := toSpectrum(scene, lut.Wavelength)
	if err != nil {
		log.Fatalf("failed to expand scene spectrally: %v", err)
	}
	radiance, err := lut.Transform(spectrum)
	if err != nil {
		log.Fatalf("atmospheric transform failed: %v", err)
	}
	bandRadiance, err := imager.Response().Transform(radiance)
	if err != nil {
		log.Fatalf("spectral integration failed: %v", err)
	}
	dn, err := imager.FitTransform(bandRadiance)
	if err != nil {
		log.Fatalf("sensor simulation failed: %v", err)
	}

	paths, err := render.SaveBandFrames(dn, *outDir, "dn")
	if err != nil {
		log.Fatalf("failed to write band frames: %v", err)
	}
	profilePath := filepath.Join(*outDir, "column_profile.png")
	if err := render.SaveColumnProfile(dn, profilePath); err != nil {
		log.Fatalf("failed to write column profile: %v", err)
	}
	if *report {
		reportPath := filepath.Join(*outDir, "histograms.html")
		if err := render.WriteHistogramReport(dn, reportPath, *bins); err != nil {
			log.Fatalf("failed to write histogram report: %v", err)
		}
	}

	if err := printSummary(dn, len(paths)); err != nil {
		log.Fatalf("failed to write summary: %v", err)
	}
}

// loadLUT reads a CSV export, fetches the named table from the store,
// or generates a synthetic clear-sky table when neither is configured.
func loadLUT() (*atmosphere.LUT, error) {
	if *lutCSV != "" {
		return atmosphere.LoadCSV(*lutCSV)
	}
	if *lutDBPath == "" {
		wavelengths := make([]float64, 0, 121)
		for wl := 400.0; wl <= 1000; wl += 5 {
			wavelengths = append(wavelengths, wl)
		}
		rhos := make([]float64, 0, 21)
		for rho := 0.0; rho <= 1.0001; rho += 0.05 {
			rhos = append(rhos, rho)
		}
		return atmosphere.ClearSky(wavelengths, rhos)
	}
	db, err := lutdb.Open(*lutDBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.LoadLUT(*lutName)
}

// loadScene reads the reflectance CSV, or synthesises a scene with a
// diagonal gradient so fixed patterns stay distinguishable from scene
// structure. Pixel coordinates are spaced at the ground sample
// distance.
func loadScene(res float64) (*signal.Signal, error) {
	if *scenePath == "" {
		n := *sceneSize
		if n < 2 {
			return nil, fmt.Errorf("scene size %d too small", n)
		}
		sig, err := signal.New(
			signal.CoordAxis(signal.DimY, coords(n, res)),
			signal.CoordAxis(signal.DimX, coords(n, res)))
		if err != nil {
			return nil, err
		}
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v := *reflectance * (0.75 + 0.5*float64(x+y)/float64(2*n-2))
				if v > 1 {
					v = 1
				}
				sig.SetAt(v, y, x)
			}
		}
		return sig, nil
	}

	f, err := os.Open(*scenePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		row := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", len(rows)+1, err)
			}
			row[i] = v
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("line %d has %d values, want %d", len(rows)+1, len(row), len(rows[0]))
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("scene %s is empty", *scenePath)
	}

	sig, err := signal.New(
		signal.CoordAxis(signal.DimY, coords(len(rows), res)),
		signal.CoordAxis(signal.DimX, coords(len(rows[0]), res)))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		for x, v := range row {
			sig.SetAt(v, y, x)
		}
	}
	return sig, nil
}

// toSpectrum extends a flat-reflectance scene along the wavelength
// axis of the lookup table.
func toSpectrum(scene *signal.Signal, wavelengths []float64) (*signal.Signal, error) {
	parts := make([]*signal.Signal, len(wavelengths))
	for i := range parts {
		parts[i] = scene
	}
	return signal.Stack(signal.CoordAxis(signal.DimWavelength, wavelengths), parts...)
}

func printSummary(dn *signal.Signal, frames int) error {
	type bandStats struct {
		Band string  `json:"band"`
		Min  float64 `json:"min_dn"`
		Mean float64 `json:"mean_dn"`
		Max  float64 `json:"max_dn"`
	}
	summary := struct {
		RunID  string      `json:"run_id,omitempty"`
		Frames int         `json:"frames"`
		Bands  []bandStats `json:"bands"`
	}{
		RunID:  dn.Attrs["run_id"],
		Frames: frames,
	}

	ax, err := dn.Axis(signal.DimBand)
	if err != nil {
		return err
	}
	for b := 0; b < ax.Size; b++ {
		band, err := dn.Isel(signal.DimBand, b)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("band %d", b)
		if b < len(ax.Labels) && ax.Labels[b] != "" {
			name = ax.Labels[b]
		}
		summary.Bands = append(summary.Bands, bandStats{
			Band: name,
			Min:  band.Min(),
			Mean: band.Mean(),
			Max:  band.Max(),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func coords(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}
