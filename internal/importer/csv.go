package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// csvColumns are the required header names, in any order
var csvColumns = []string{
	"product_code",
	"product_name",
	"date",
	"opening_stock",
	"inbound_quantity",
	"sold_quantity",
	"closing_stock",
}

// CSVFile is a Source reading a consolidated CSV export
type CSVFile struct {
	Path string
}

// Name implements Source
func (f CSVFile) Name() string {
	return "csv:" + f.Path
}

// Rows implements Source
func (f CSVFile) Rows(ctx context.Context) ([]Row, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses rows from r. The separator is ',' or ';', whichever the
// header line uses.
func ReadCSV(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	firstLine, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if nl := bytes.IndexByte(firstLine, '\n'); nl >= 0 {
		firstLine = firstLine[:nl]
	}

	reader := csv.NewReader(br)
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		reader.Comma = ';'
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("CSV header is missing column '%s'", col)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRecord(record []string, index map[string]int) (Row, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[index[name]])
	}

	row := Row{
		ProductCode: field("product_code"),
		ProductName: field("product_name"),
	}
	if row.ProductCode == "" {
		return row, nil
	}

	date, err := time.Parse(dateLayout, firstN(field("date"), len(dateLayout)))
	if err != nil {
		return row, fmt.Errorf("invalid date '%s'", field("date"))
	}
	row.Date = date

	ints := []struct {
		name string
		dest *int
	}{
		{"opening_stock", &row.OpeningStock},
		{"inbound_quantity", &row.InboundQuantity},
		{"sold_quantity", &row.SoldQuantity},
		{"closing_stock", &row.ClosingStock},
	}
	for _, f := range ints {
		value := field(f.name)
		if value == "" {
			continue
		}
		n, err := parseQuantity(value)
		if err != nil {
			return row, fmt.Errorf("invalid %s '%s'", f.name, value)
		}
		*f.dest = n
	}

	return row, nil
}

// parseQuantity accepts integers and spreadsheet floats such as "12.0"
func parseQuantity(value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
