package raster

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NoData is the sentinel written for missing cells.
const NoData = -9999

// ReadASCII parses an ESRI ASCII grid. Cells equal to the file's
// NODATA_value become NaN.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	var (
		e        Extent
		center   bool
		noData   = math.NaN()
		haveNoDV bool
		seen     = map[string]bool{}
		first    string
	)

	// header is a run of key value pairs ending at the first numeric token
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("ascii grid: header %q has no value", key)
		}
		val := sc.Text()

		var err error
		switch key {
		case "ncols":
			e.Cols, err = strconv.Atoi(val)
		case "nrows":
			e.Rows, err = strconv.Atoi(val)
		case "xllcorner", "xllcenter":
			e.XLL, err = strconv.ParseFloat(val, 64)
			center = center || key == "xllcenter"
		case "yllcorner", "yllcenter":
			e.YLL, err = strconv.ParseFloat(val, 64)
			center = center || key == "yllcenter"
		case "cellsize":
			e.CellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			noData, err = strconv.ParseFloat(val, 64)
			haveNoDV = true
		default:
			return nil, fmt.Errorf("ascii grid: unknown header %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("ascii grid: header %s: %w", key, err)
		}
		seen[strings.TrimSuffix(strings.TrimSuffix(key, "corner"), "center")] = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for _, k := range []string{"ncols", "nrows", "xll", "yll", "cellsize"} {
		if !seen[k] {
			return nil, fmt.Errorf("ascii grid: missing header %s", k)
		}
	}
	if e.Cols <= 0 || e.Rows <= 0 || e.CellSize <= 0 {
		return nil, errors.New("ascii grid: non-positive dimensions")
	}
	if center {
		e.XLL -= e.CellSize / 2
		e.YLL -= e.CellSize / 2
	}

	g := &Grid{Extent: e, Data: make([]float64, 0, e.Cells())}
	push := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("ascii grid: cell %d: %w", len(g.Data), err)
		}
		if haveNoDV && v == noData {
			v = math.NaN()
		}
		g.Data = append(g.Data, v)
		return nil
	}

	if first != "" {
		if err := push(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if len(g.Data) == e.Cells() {
			return nil, fmt.Errorf("ascii grid: more than %d cells", e.Cells())
		}
		if err := push(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(g.Data) != e.Cells() {
		return nil, fmt.Errorf("ascii grid: %d cells, want %d", len(g.Data), e.Cells())
	}

	return g, nil
}

// WriteASCII writes g as an ESRI ASCII grid with NaN cells as NoData.
func WriteASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatFloat(g.XLL), formatFloat(g.YLL))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %d\n", formatFloat(g.CellSize), NoData)

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			v := g.Data[r*g.Cols+c]
			if math.IsNaN(v) {
				bw.WriteString(strconv.Itoa(NoData))
			} else {
				bw.WriteString(formatFloat(v))
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadStack loads <dir>/<name>.asc for every name into one stack. All
// grids must share an extent. ctx is checked before each file.
func ReadStack(ctx context.Context, dir string, names []string) (*Stack, error) {
	var s *Stack
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := readFile(filepath.Join(dir, name+".asc"))
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = NewStack(g.Extent)
		}
		if err := s.Add(name, g); err != nil {
			return nil, err
		}
	}
	if s == nil {
		return nil, errors.New("raster stack has no bands")
	}
	return s, nil
}

func readFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := ReadASCII(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// WriteFile writes g to path as an ESRI ASCII grid.
func WriteFile(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASCII(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
