// Package bytesize parses human-readable byte sizes such as "1mb".
package bytesize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Size uint64

const (
	B  Size = 1
	KB      = B << 10
	MB      = KB << 10
	GB      = MB << 10
	TB      = GB << 10
)

var (
	ErrInvalidSizeFormat   = errors.New("size must be a number followed by a unit, e.g. 10mb")
	ErrInvalidNumberFormat = errors.New("size has an invalid numeric part")
	ErrUnknownUnit         = errors.New("unknown size unit")
)

var units = map[string]Size{
	"b":  B,
	"kb": KB,
	"mb": MB,
	"gb": GB,
	"tb": TB,
}

// ParseSize parses strings like "1kb", "10 mb" or "2gb" (case-insensitive,
// whitespace ignored) into a Size.
func ParseSize(s string) (Size, error) {
	cleaned := strings.ToLower(strings.ReplaceAll(s, " ", ""))

	split := len(cleaned)
	for i, r := range cleaned {
		if r < '0' || r > '9' {
			split = i
			break
		}
	}
	num, unit := cleaned[:split], cleaned[split:]

	if unit == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSizeFormat, s)
	}
	if num == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumberFormat, s)
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumberFormat, s)
	}
	mult, ok := units[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return Size(n) * mult, nil
}
