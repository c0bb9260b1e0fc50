package reademail

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Field value types supported by read_email mappings.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeInteger  = "integer"
	TypeBoolean  = "boolean"
	TypeDateOnly = "date_only"
	TypeDateTime = "datetime"
	TypeRIN      = "rin"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// CastValue coerces a raw extracted string to the configured field type.
// date_only yields YYYY-MM-DD, datetime yields RFC 3339, and rin strips
// non-alphanumerics and uppercases the rest.
func CastValue(raw string, fieldType string) (any, error) {
	value := strings.TrimSpace(raw)

	switch fieldType {
	case TypeNumber:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number: %w", value, err)
		}

		return parsed, nil
	case TypeInteger:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// Tolerate "3.0" style values from AI extraction.
			asFloat, floatErr := strconv.ParseFloat(value, 64)
			if floatErr != nil {
				return nil, fmt.Errorf("%q is not an integer: %w", value, err)
			}

			return int64(asFloat), nil
		}

		return parsed, nil
	case TypeBoolean:
		switch strings.ToLower(value) {
		case "true", "yes", "y", "1", "on":
			return true, nil
		case "false", "no", "n", "0", "off", "":
			return false, nil
		default:
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
	case TypeDateOnly:
		parsed, err := parseDate(value)
		if err != nil {
			return nil, err
		}

		return parsed.Format("2006-01-02"), nil
	case TypeDateTime:
		parsed, err := parseDate(value)
		if err != nil {
			return nil, err
		}

		return parsed.Format(time.RFC3339), nil
	case TypeRIN:
		return castRIN(value), nil
	default:
		return value, nil
	}
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("%q is not a recognized date", value)
}

// castRIN keeps only alphanumeric characters and uppercases them.
func castRIN(value string) string {
	var b strings.Builder

	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}

	return b.String()
}
