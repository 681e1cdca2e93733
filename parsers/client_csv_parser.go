package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"pagobot/model"
	"pagobot/registry"
	"pagobot/validate"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ClientRow is one valid row of a client import file.
type ClientRow struct {
	Line   int
	Key    string
	Record model.ClientRecord
}

// RowError is a row that was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

var clientHeaders = []string{"phone", "name", "pay_day", "amount"}

// decodeInput returns UTF-8 text for data. Input that is not valid UTF-8 is
// read as Windows-1252, the encoding spreadsheet exports use on Windows.
func decodeInput(data []byte) io.Reader {
	if utf8.Valid(data) {
		return SkipBOM(bytes.NewReader(data))
	}
	return transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder())
}

// ParseClientCSV parses a client import file with the header
// phone,name,pay_day,amount[,country]. Invalid rows are reported and skipped.
func ParseClientCSV(r io.Reader) ([]ClientRow, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	reader := csv.NewReader(decodeInput(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	colIndex, err := getColIndex(header, clientHeaders)
	if err != nil {
		return nil, nil, err
	}

	var rows []ClientRow
	var skipped []RowError
	seen := make(map[string]int)
	line := 1

	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("WARN: [Import] client CSV line %d unreadable (skipped): %v", line, err)
			skipped = append(skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		key := registry.NormalizeKey(get("phone"))
		payDay, convErr := strconv.Atoi(get("pay_day"))
		if convErr != nil {
			skipped = append(skipped, RowError{Line: line, Reason: fmt.Sprintf("pay_day %q is not a number", get("pay_day"))})
			continue
		}
		cr := model.ClientRecord{
			Name:        get("name"),
			PayDay:      payDay,
			Amount:      get("amount"),
			CountryFlag: get("country"),
		}
		if err := validate.Client(key, cr); err != nil {
			skipped = append(skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if prev, dup := seen[key]; dup {
			skipped = append(skipped, RowError{Line: line, Reason: fmt.Sprintf("phone %s already on line %d", key, prev)})
			continue
		}
		seen[key] = line
		rows = append(rows, ClientRow{Line: line, Key: key, Record: cr})
	}

	return rows, skipped, nil
}
