package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// UniverseReader loads the tradable asset universe from an Excel or CSV
// file. The first sheet (or the CSV body) must carry a header row with a
// symbol column; every other column is ignored.
type UniverseReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewUniverseReader creates a reader that handles both Excel and CSV files
func NewUniverseReader(filePath string) *UniverseReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &UniverseReader{filePath: filePath, fileType: fileType}
}

// symbolColumns are the header names recognized as the ticker column,
// checked in order.
var symbolColumns = []string{"symbol", "ticker", "asset", "instrument"}

// Read returns the deduplicated, uppercased, sorted universe
func (r *UniverseReader) Read() ([]string, error) {
	log.Printf("[UniverseReader] Reading %s universe file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("universe file not found: %s", r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("universe file must have a header row and at least one data row")
	}

	return r.extractSymbols(rows)
}

func (r *UniverseReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("Excel file has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *UniverseReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// extractSymbols finds the symbol column and collects its values
func (r *UniverseReader) extractSymbols(rows [][]string) ([]string, error) {
	headerRow := rows[0]
	symbolIdx := -1
	for i, header := range headerRow {
		name := strings.ToLower(strings.TrimSpace(header))
		for _, candidate := range symbolColumns {
			if name == candidate {
				symbolIdx = i
				break
			}
		}
		if symbolIdx >= 0 {
			break
		}
	}
	if symbolIdx < 0 {
		return nil, fmt.Errorf("no symbol column found (looked for %s)", strings.Join(symbolColumns, ", "))
	}

	seen := make(map[string]bool)
	var universe []string
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if symbolIdx >= len(row) {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(row[symbolIdx]))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		universe = append(universe, symbol)
	}

	if len(universe) == 0 {
		return nil, fmt.Errorf("universe file contains no symbols")
	}

	sort.Strings(universe)
	log.Printf("[UniverseReader] Universe loaded (%d symbols)", len(universe))
	return universe, nil
}
