package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// parsedInput accumulates rows while reading an occurrence table. The label
// is always the first column; coordinate columns are recognised by name.
type parsedInput struct {
	names   []string
	feature []int // column index of each feature
	xCol    int
	yCol    int
	rows    []Observation
	dropped int
}

// ReadCSV parses an occurrence table. The first column is the label
// (1/presence/true or 0/absence/background/false); columns named x/y or
// lon/lat hold coordinates, every other column is a numeric feature. If the
// first row is all numbers it is treated as data and features are named
// X1..Xn. Rows with an empty or NA feature value are dropped and counted.
func ReadCSV(r io.Reader) (*Dataset, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// grab first row
	row, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if len(row) < 2 {
		return nil, 0, errors.New("csv needs a label column and at least one feature")
	}

	p := &parsedInput{xCol: -1, yCol: -1}

	// check if it's a header row
	if colNames, err := parseHeader(row); err == nil {
		p.bindColumns(colNames)
	} else {
		for i := range row[1:] {
			p.names = append(p.names, fmt.Sprintf("X%d", i+1))
			p.feature = append(p.feature, i+1)
		}
		if err := p.parseRow(row, 1); err != nil {
			return nil, 0, err
		}
	}
	if len(p.feature) == 0 {
		return nil, 0, errors.New("csv has no feature columns")
	}

	// keep reading rows until EOF
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, p.dropped, err
		}
		line++

		if err := p.parseRow(row, line); err != nil {
			return nil, p.dropped, err
		}
	}

	d := &Dataset{Names: p.names, Rows: p.rows}
	return d, p.dropped, nil
}

func (p *parsedInput) bindColumns(colNames []string) {
	for i, name := range colNames {
		col := i + 1
		switch strings.ToLower(name) {
		case "x", "lon", "longitude":
			p.xCol = col
		case "y", "lat", "latitude":
			p.yCol = col
		default:
			p.names = append(p.names, name)
			p.feature = append(p.feature, col)
		}
	}
}

func (p *parsedInput) parseRow(row []string, line int) error {
	presence, err := parseLabel(row[0])
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}

	xi := make([]float64, len(p.feature))
	for j, col := range p.feature {
		if col >= len(row) {
			return fmt.Errorf("line %d: missing column %d", line, col)
		}
		v, ok, err := parseValue(row[col])
		if err != nil {
			return fmt.Errorf("line %d, column %q: %w", line, p.names[j], err)
		}
		if !ok {
			p.dropped++
			return nil
		}
		xi[j] = v
	}

	o := Observation{Index: len(p.rows), Features: xi, Presence: presence}
	if p.xCol >= 0 && p.yCol >= 0 && p.xCol < len(row) && p.yCol < len(row) {
		x, okX, errX := parseValue(row[p.xCol])
		y, okY, errY := parseValue(row[p.yCol])
		if errX == nil && errY == nil && okX && okY {
			o.Coord = &Coord{X: x, Y: y}
		}
	}
	p.rows = append(p.rows, o)

	return nil
}

// parseValue reports ok=false for missing and infinite values.
func parseValue(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

func parseLabel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "presence", "present", "true":
		return true, nil
	case "0", "0.0", "absence", "absent", "background", "false":
		return false, nil
	}
	return false, fmt.Errorf("unrecognised label %q", s)
}

// we only accept numeric input values, so we can consider the first row
// as a header row if one or more of the values isn't a number
func parseHeader(row []string) ([]string, error) {
	colNames := []string{}

	isHeader := false
	for _, val := range row[1:] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err != nil {
			isHeader = true
		}
		colNames = append(colNames, strings.TrimSpace(val))
	}
	if !isHeader {
		return nil, errors.New("not a header row")
	}

	return colNames, nil
}
