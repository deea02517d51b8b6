package excel

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, header string, symbols []string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", header); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue(sheet, "B1", "name"); err != nil {
		t.Fatal(err)
	}
	for i, s := range symbols {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(sheet, cell, s); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "universe.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRead_Excel(t *testing.T) {
	path := writeWorkbook(t, "Symbol", []string{"spy", "TLT", "gld", "SPY", "  qqq "})

	universe, err := NewUniverseReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{"GLD", "QQQ", "SPY", "TLT"}
	if !reflect.DeepEqual(universe, want) {
		t.Errorf("universe = %v, want %v", universe, want)
	}
}

func TestRead_CSV(t *testing.T) {
	path := writeCSV(t, "id,ticker,sector\n1,tlt,bonds\n2,SPY,equity\n3,spy,equity\n")

	universe, err := NewUniverseReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{"SPY", "TLT"}
	if !reflect.DeepEqual(universe, want) {
		t.Errorf("universe = %v, want %v", universe, want)
	}
}

func TestRead_AlternateHeaderNames(t *testing.T) {
	for _, header := range []string{"symbol", "Ticker", "ASSET", "instrument"} {
		path := writeCSV(t, header+"\nSPY\n")
		universe, err := NewUniverseReader(path).Read()
		if err != nil {
			t.Errorf("header %q: %v", header, err)
			continue
		}
		if len(universe) != 1 || universe[0] != "SPY" {
			t.Errorf("header %q: universe = %v", header, universe)
		}
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := NewUniverseReader(filepath.Join(t.TempDir(), "nope.csv")).Read(); err == nil {
		t.Error("missing file should fail")
	}
}

func TestRead_NoSymbolColumn(t *testing.T) {
	path := writeCSV(t, "id,name\n1,bonds\n")
	if _, err := NewUniverseReader(path).Read(); err == nil {
		t.Error("file without a symbol column should fail")
	}
}

func TestRead_HeaderOnly(t *testing.T) {
	path := writeCSV(t, "symbol\n")
	if _, err := NewUniverseReader(path).Read(); err == nil {
		t.Error("file without data rows should fail")
	}
}

func TestRead_BlankRowsSkipped(t *testing.T) {
	path := writeCSV(t, "symbol\nSPY\n\nTLT\n")
	universe, err := NewUniverseReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(universe) != 2 {
		t.Errorf("universe = %v, want 2 symbols", universe)
	}
}
