package cdc

import "fmt"

// Format selects how the server frames the requested stream.
type Format string

const (
	// FormatJSON streams concatenated, self-delimiting JSON records.
	FormatJSON Format = "JSON"
	// FormatAvro streams an undifferentiated binary Avro stream.
	FormatAvro Format = "AVRO"
)

func (f Format) IsJSON() bool { return f == FormatJSON }
func (f Format) IsAvro() bool { return f == FormatAvro }

// ParseFormat validates a format selector as it appears in configuration or
// on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatAvro:
		return FormatAvro, nil
	default:
		return "", fmt.Errorf("%w: %q (expected JSON or AVRO)", ErrInvalidFormat, s)
	}
}
