// Package position defines the playing positions scored by the service.
package position

import (
	"fmt"
	"strings"
)

// Position is an upper-case position code such as "ST" or "CB".
type Position string

// Outfield positions in canonical order, plus the goalkeeper.
const (
	ST  Position = "ST"
	LW  Position = "LW"
	RW  Position = "RW"
	CM  Position = "CM"
	CDM Position = "CDM"
	CAM Position = "CAM"
	LB  Position = "LB"
	RB  Position = "RB"
	CB  Position = "CB"
	GK  Position = "GK"
)

// Default is used as best position when a fallback result has no usable natural position.
const Default = CM

var outfield = [...]Position{ST, LW, RW, CM, CDM, CAM, LB, RB, CB}

// Outfield returns the nine outfield positions in canonical order.
// The returned slice is a fresh copy.
func Outfield() []Position {
	out := make([]Position, len(outfield))
	copy(out, outfield[:])
	return out
}

// Count is the number of outfield positions.
const Count = len(outfield)

// IsOutfield reports whether p is one of the nine outfield positions.
func (p Position) IsOutfield() bool {
	for _, o := range outfield {
		if o == p {
			return true
		}
	}
	return false
}

// Lower returns the lower-case code, used for column names.
func (p Position) Lower() string { return strings.ToLower(string(p)) }

func (p Position) String() string { return string(p) }

// Parse maps a case-insensitive position code to a Position.
// "Goalkeeper" is accepted for GK.
func Parse(s string) (Position, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "GOALKEEPER" {
		return GK, nil
	}
	p := Position(v)
	if p == GK || p.IsOutfield() {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPosition, s)
}

// ParseOutfield is Parse restricted to the nine outfield positions.
func ParseOutfield(s string) (Position, error) {
	p, err := Parse(s)
	if err != nil {
		return "", err
	}
	if !p.IsOutfield() {
		return "", fmt.Errorf("%w: %q is not an outfield position", ErrUnknownPosition, s)
	}
	return p, nil
}
