package domain

import (
	"fmt"
	"strings"
)

// Instrument is a ticker symbol, opaque to the engine.
type Instrument string

func (i Instrument) String() string { return string(i) }

// ParseInstruments trims every identifier and rejects empty or duplicated entries.
func ParseInstruments(raw []string) ([]Instrument, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: instruments must not be empty", ErrInvalidInput)
	}
	out := make([]Instrument, 0, len(raw))
	for _, r := range raw {
		out = append(out, Instrument(strings.TrimSpace(r)))
	}
	if err := ValidateInstruments(out); err != nil {
		return nil, err
	}
	return out, nil
}

func ValidateInstruments(instruments []Instrument) error {
	if len(instruments) == 0 {
		return fmt.Errorf("%w: instruments must not be empty", ErrInvalidInput)
	}
	seen := make(map[Instrument]struct{}, len(instruments))
	for idx, inst := range instruments {
		if inst == "" {
			return fmt.Errorf("%w: instrument at position %d is empty", ErrInvalidInput, idx)
		}
		if _, dup := seen[inst]; dup {
			return fmt.Errorf("%w: duplicate instrument %q", ErrInvalidInput, inst)
		}
		seen[inst] = struct{}{}
	}
	return nil
}
