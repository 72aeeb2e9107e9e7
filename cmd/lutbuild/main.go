// lutbuild seeds and manages the atmospheric lookup-table store.
// Without a radiative-transfer run available it generates a synthetic
// clear-sky table on a configurable wavelength/reflectance grid.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/treeview-data/eosim/internal/atmosphere"
	"github.com/treeview-data/eosim/internal/lutdb"
)

var (
	dbPath  = flag.String("db", "luts.db", "Path to the lookup-table database")
	name    = flag.String("name", "clear-sky", "Name to store the table under")
	wlMin   = flag.Float64("wl-min", 400, "Minimum wavelength (nm)")
	wlMax   = flag.Float64("wl-max", 1000, "Maximum wavelength (nm)")
	wlStep  = flag.Float64("wl-step", 5, "Wavelength grid step (nm)")
	rhoMax  = flag.Float64("rho-max", 1.0, "Maximum surface reflectance")
	rhoStep = flag.Float64("rho-step", 0.05, "Reflectance grid step")
	list    = flag.Bool("list", false, "List stored tables and exit")
	remove  = flag.String("delete", "", "Delete the named table and exit")
)

func main() {
	flag.Parse()

	db, err := lutdb.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open lookup-table store: %v", err)
	}
	defer db.Close()

	if *list {
		entries, err := db.ListLUTs()
		if err != nil {
			log.Fatalf("failed to list tables: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("no stored tables")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s\n", e.Created.Format("2006-01-02 15:04:05"), e.ID, e.Name)
		}
		return
	}

	if *remove != "" {
		if err := db.DeleteLUT(*remove); err != nil {
			log.Fatalf("failed to delete %q: %v", *remove, err)
		}
		fmt.Printf("deleted %q\n", *remove)
		return
	}

	wavelengths := gridRange(*wlMin, *wlMax, *wlStep)
	rhos := gridRange(0, *rhoMax, *rhoStep)
	if len(wavelengths) < 2 || len(rhos) < 2 {
		log.Fatal("wavelength and reflectance grids need at least two samples each")
	}

	lut, err := atmosphere.ClearSky(wavelengths, rhos)
	if err != nil {
		log.Fatalf("failed to generate table: %v", err)
	}

	id, err := db.SaveLUT(*name, lut)
	if err != nil {
		log.Fatalf("failed to store table: %v", err)
	}
	fmt.Printf("stored %q (%s): %d wavelengths x %d reflectances\n",
		*name, id, len(wavelengths), len(rhos))
}

// gridRange returns the ascending grid lo, lo+step, ... up to and
// including hi (within half a step).
func gridRange(lo, hi, step float64) []float64 {
	if step <= 0 || hi < lo {
		return nil
	}
	var out []float64
	for v := lo; v <= hi+step/2; v += step {
		out = append(out, v)
	}
	return out
}
