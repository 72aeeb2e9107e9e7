package lutdb

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/treeview-data/eosim/internal/atmosphere"
	"github.com/treeview-data/eosim/internal/monitoring"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	t.Cleanup(monitoring.Quiet())
	db, err := Open(filepath.Join(t.TempDir(), "luts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLUT(t *testing.T) *atmosphere.LUT {
	t.Helper()
	lut, err := atmosphere.NewLUT(
		[]float64{400, 700, 1000},
		[]float64{0, 0.5, 1},
		[][]float64{
			{0, 1, 2},
			{0, 2, 4},
			{0, 3, 6},
		},
		map[string]string{"model": "test", "solar_zenith": "30"},
	)
	if err != nil {
		t.Fatalf("NewLUT: %v", err)
	}
	return lut
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	want := testLUT(t)

	id, err := db.SaveLUT("clear-sky", want)
	if err != nil {
		t.Fatalf("SaveLUT: %v", err)
	}
	if id == "" {
		t.Fatal("SaveLUT returned empty ID")
	}

	got, err := db.LoadLUT("clear-sky")
	if err != nil {
		t.Fatalf("LoadLUT: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded table differs (-want +got):\n%s", diff)
	}
}

func TestSaveReplacesByName(t *testing.T) {
	db := openTestDB(t)
	first := testLUT(t)
	if _, err := db.SaveLUT("site-a", first); err != nil {
		t.Fatalf("SaveLUT: %v", err)
	}

	second := testLUT(t)
	second.Radiance[0][1] = 99
	second.Meta["model"] = "revised"
	if _, err := db.SaveLUT("site-a", second); err != nil {
		t.Fatalf("SaveLUT replace: %v", err)
	}

	got, err := db.LoadLUT("site-a")
	if err != nil {
		t.Fatalf("LoadLUT: %v", err)
	}
	if got.Radiance[0][1] != 99 || got.Meta["model"] != "revised" {
		t.Errorf("replacement not stored: radiance %g, model %q", got.Radiance[0][1], got.Meta["model"])
	}

	entries, err := db.ListLUTs()
	if err != nil {
		t.Fatalf("ListLUTs: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ListLUTs returned %d entries after replace, want 1", len(entries))
	}
}

func TestListLUTs(t *testing.T) {
	db := openTestDB(t)
	lut := testLUT(t)
	for _, name := range []string{"alpha", "bravo"} {
		if _, err := db.SaveLUT(name, lut); err != nil {
			t.Fatalf("SaveLUT(%q): %v", name, err)
		}
	}

	entries, err := db.ListLUTs()
	if err != nil {
		t.Fatalf("ListLUTs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListLUTs returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ID == "" || e.Name == "" || e.Created.IsZero() {
			t.Errorf("incomplete entry: %+v", e)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadLUT("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadLUT missing: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteLUT(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.SaveLUT("gone", testLUT(t)); err != nil {
		t.Fatalf("SaveLUT: %v", err)
	}
	if err := db.DeleteLUT("gone"); err != nil {
		t.Fatalf("DeleteLUT: %v", err)
	}
	if _, err := db.LoadLUT("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadLUT after delete: err = %v, want ErrNotFound", err)
	}
	if err := db.DeleteLUT("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteLUT twice: err = %v, want ErrNotFound", err)
	}
}

func TestEmptyNameRejected(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.SaveLUT("", testLUT(t)); err == nil {
		t.Error("SaveLUT with empty name succeeded")
	}
}
