package parsers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SkipBOM skips a leading UTF-8 byte order mark.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(len(utf8BOM))
	if err != nil {
		return br
	}
	if bytes.Equal(peeked, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// getColIndex maps lower-cased header names to column positions and checks
// that every required column is present.
func getColIndex(header []string, required []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, colName := range header {
		colIndex[strings.ToLower(strings.TrimSpace(colName))] = i
	}
	for _, req := range required {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("required column missing: %s", req)
		}
	}
	return colIndex, nil
}
