package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMode is returned for a mode other than production or
// development.
var ErrInvalidMode = errors.New("invalid mode")

// Mode is the build mode the pipeline runs in.
type Mode string

const (
	Production  Mode = "production"
	Development Mode = "development"
)

// ParseMode parses a mode name, case-insensitively. The empty string is
// production.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "production", "prod":
		return Production, nil
	case "development", "dev":
		return Development, nil
	default:
		return "", fmt.Errorf("%w: %q (want production or development)", ErrInvalidMode, s)
	}
}

func (m Mode) String() string {
	return string(m)
}

// IsDevelopment reports whether m is development mode.
func (m Mode) IsDevelopment() bool {
	return m == Development
}
