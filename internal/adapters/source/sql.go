package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/posfit/internal/domain/model"
)

const selectPlayers = `SELECT * FROM players ORDER BY player_id`

// SQLSource reads players from the players table.
type SQLSource struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSQLSource returns a source over db. A zero timeout disables the query deadline.
func NewSQLSource(db *sqlx.DB, timeout time.Duration) *SQLSource {
	return &SQLSource{db: db, timeout: timeout}
}

// Players implements Source. Numeric columns become attributes; NULLs are missing.
func (s *SQLSource) Players(ctx context.Context) ([]model.Player, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.db.QueryxContext(ctx, selectPlayers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadSource, err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrReadSource, err)
		}
		players = append(players, playerFromRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadSource, err)
	}
	return players, nil
}

func playerFromRow(m map[string]interface{}) model.Player {
	p := model.Player{Attributes: make(map[string]float64, len(m))}
	for col, raw := range m {
		name := strings.ToLower(col)
		switch {
		case contains(idColumns, name):
			p.ID = asString(raw)
		case contains(positionColumns, name):
			if p.NaturalPosition == "" {
				p.NaturalPosition = asString(raw)
			}
		case contains(overallColumns, name):
			if v, ok := asFloat(raw); ok {
				p.Overall = &v
			}
		default:
			if v, ok := asFloat(raw); ok {
				p.Attributes[col] = v
			} else if name == "weight" {
				if v, ok := parseWeight(asString(raw)); ok {
					p.Attributes[col] = v
				}
			}
		}
	}
	if p.ID == "" {
		p.Err = fmt.Errorf("%w: empty player_id", ErrMalformedRow)
	}
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case int:
		return float64(t), true
	case []byte:
		f, err := parseNumber(strings.TrimSpace(string(t)))
		return f, err == nil
	case string:
		f, err := parseNumber(strings.TrimSpace(t))
		return f, err == nil
	default:
		return 0, false
	}
}
