package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Position is the normalized frame coordinate of a clip's center: (0,0) is
// the top-left corner, (1,1) the bottom-right.
type Position struct {
	X float64
	Y float64
}

// Center is the default position.
var Center = Position{X: 0.5, Y: 0.5}

const (
	edgeNear = 0.15
	edgeFar  = 0.85
)

// ParsePosition maps a placement keyword such as "center", "bottom" or
// "top-left" to a normalized coordinate.
func ParsePosition(keyword string) (Position, error) {
	key := strings.ToLower(strings.TrimSpace(keyword))
	if key == "" || key == "center" || key == "centre" || key == "middle" {
		return Center, nil
	}
	pos := Center
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == ' ' }) {
		switch part {
		case "top", "upper":
			pos.Y = edgeNear
		case "bottom", "lower":
			pos.Y = edgeFar
		case "left":
			pos.X = edgeNear
		case "right":
			pos.X = edgeFar
		case "center", "centre", "middle":
		default:
			return Position{}, fmt.Errorf("unknown position keyword %q", keyword)
		}
	}
	return pos, nil
}

// MarshalJSON writes the canonical [x, y] form.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts a keyword string, an [x, y] array or an {x, y} object.
func (p *Position) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*p = Center
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var keyword string
		if err := json.Unmarshal(data, &keyword); err != nil {
			return err
		}
		pos, err := ParsePosition(keyword)
		if err != nil {
			return err
		}
		*p = pos
		return nil
	case strings.HasPrefix(trimmed, "["):
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("position array needs 2 values, got %d", len(pair))
		}
		*p = Position{X: pair[0], Y: pair[1]}
		return nil
	default:
		var obj struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*p = Position{X: obj.X, Y: obj.Y}
		return nil
	}
}
