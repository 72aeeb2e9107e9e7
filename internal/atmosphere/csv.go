package atmosphere

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads a lookup table exported by a radiative-transfer run.
// The header row is "wavelength" followed by the reflectance grid; each
// data row is a wavelength followed by the radiance at each
// reflectance.
func LoadCSV(path string) (*LUT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("lookup table %s: empty file", path)
	}
	header := strings.Split(strings.TrimSpace(scanner.Text()), ",")
	if len(header) < 2 {
		return nil, fmt.Errorf("lookup table %s: header needs a reflectance grid", path)
	}
	rho := make([]float64, len(header)-1)
	for i, field := range header[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: header column %d: %w", path, i+2, err)
		}
		rho[i] = v
	}

	var wavelength []float64
	var radiance [][]float64
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("lookup table %s: line %d: %d fields, want %d", path, line, len(fields), len(header))
		}
		wl, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: line %d: %w", path, line, err)
		}
		row := make([]float64, len(rho))
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("lookup table %s: line %d: %w", path, line, err)
			}
			row[i] = v
		}
		wavelength = append(wavelength, wl)
		radiance = append(radiance, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	lut, err := NewLUT(wavelength, rho, radiance, map[string]string{"source": path})
	if err != nil {
		return nil, fmt.Errorf("lookup table %s: %w", path, err)
	}
	return lut, nil
}
