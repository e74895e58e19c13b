package enum

// Side is the direction of a fill.
type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide maps the wire/CLI representation to a Side.
func ParseSide(s string) Side {
	switch s {
	case "buy", "BUY", "Buy":
		return SideBuy
	case "sell", "SELL", "Sell":
		return SideSell
	default:
		return _side_beg
	}
}

func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Side) UnmarshalJSON(data []byte) error {
	trimmed := string(data)
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	*s = ParseSide(trimmed)
	return nil
}
