package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseRange parses "8080" or "8000-9000" into inclusive bounds within
// 0..65535.
func ParseRange(s string) (from, to int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, errors.New("empty port range")
	}
	lo, hi, isRange := strings.Cut(s, "-")
	if from, err = parsePort(lo); err != nil {
		return 0, 0, err
	}
	to = from
	if isRange {
		if to, err = parsePort(hi); err != nil {
			return 0, 0, err
		}
	}
	if from > to {
		return 0, 0, fmt.Errorf("range start greater than end: %s", s)
	}
	return from, to, nil
}

func parsePort(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if v < 0 || v > 65535 {
		return 0, fmt.Errorf("port %d outside 0..65535", v)
	}
	return v, nil
}
