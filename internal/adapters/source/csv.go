package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/posfit/internal/domain/model"
)

var weightKg = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*kg`)

// CSVSource reads players from a CSV file with a header row.
type CSVSource struct {
	path string
}

// NewCSVSource returns a source reading path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Players implements Source.
func (s *CSVSource) Players(ctx context.Context) ([]model.Player, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadSource, err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

// ReadCSV parses players from r. The player_id column is required;
// sub_position/natural_pos/position and ovr/overall are identity columns
// matched case-insensitively. Every other column becomes an attribute when
// its value is numeric. Empty, NA and null cells are missing.
func ReadCSV(ctx context.Context, r io.Reader) ([]model.Player, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrReadSource, err)
	}
	cols := newLayout(header)
	if cols.id < 0 {
		return nil, fmt.Errorf("%w: missing player_id column", ErrReadSource)
	}

	var players []model.Player
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: line %d: %w", ErrReadSource, line, err)
		}
		if row == nil {
			players = append(players, model.Player{Err: fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)})
			continue
		}
		p := cols.player(row)
		if err != nil && p.Err == nil {
			p.Err = fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		players = append(players, p)
	}
	return players, nil
}

type layout struct {
	header  []string
	id      int
	natural int
	overall int
}

func newLayout(header []string) layout {
	l := layout{header: make([]string, len(header))}
	for i, h := range header {
		l.header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	l.id = l.find(idColumns)
	l.natural = l.find(positionColumns)
	l.overall = l.find(overallColumns)
	return l
}

// find returns the first header index matching one of names, by priority.
func (l layout) find(names []string) int {
	for _, n := range names {
		for i, h := range l.header {
			if strings.EqualFold(h, n) {
				return i
			}
		}
	}
	return -1
}

func (l layout) player(row []string) model.Player {
	p := model.Player{Attributes: make(map[string]float64, len(row))}
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	p.ID = cell(l.id)
	p.NaturalPosition = cell(l.natural)
	if raw := cell(l.overall); !isMissing(raw) {
		v, err := parseNumber(raw)
		if err != nil {
			p.Err = fmt.Errorf("%w: overall %q", ErrMalformedRow, raw)
		} else {
			p.Overall = &v
		}
	}
	if p.ID == "" && p.Err == nil {
		p.Err = fmt.Errorf("%w: empty player_id", ErrMalformedRow)
	}

	for i, name := range l.header {
		if i == l.id || i == l.natural || i == l.overall || i >= len(row) || name == "" {
			continue
		}
		raw := cell(i)
		if isMissing(raw) {
			continue
		}
		if v, err := parseNumber(raw); err == nil {
			p.Attributes[name] = v
			continue
		}
		if strings.EqualFold(name, "weight") || strings.EqualFold(name, "weight_in_kg") {
			if v, ok := parseWeight(raw); ok {
				p.Attributes[name] = v
			}
		}
	}
	return p
}

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null", "none":
		return true
	}
	return false
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// parseWeight extracts kilograms from strings like "63kg / 139lb".
func parseWeight(s string) (float64, bool) {
	m := weightKg.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}
