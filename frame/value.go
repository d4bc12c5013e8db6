package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// TimeLayout is the text format of timestamps in the source database and in
// staging files. Fractional seconds are accepted when parsing.
const TimeLayout = "2006-01-02 15:04:05"

// timeWriteLayout keeps sub-second precision only when there is some.
const timeWriteLayout = "2006-01-02 15:04:05.999999"

var timeLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses s with the layouts timestamps appear in. Times are UTC.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// InferKind picks the narrowest kind every non-empty value parses as.
// Empty strings are missing values and do not take part. A column with no
// values at all is a string column.
func InferKind(values []string) Kind {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false

	for _, v := range values {
		if v == "" {
			continue
		}
		seen = true

		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			// ParseFloat also takes "NaN" and "Inf", which are words here.
			if _, err := strconv.ParseFloat(v, 64); err != nil || !strings.ContainsAny(v, "0123456789") {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(v); !ok {
				isBool = false
			}
		}
		if isTime {
			if _, ok := ParseTime(v); !ok {
				isTime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return KindString
		}
	}

	switch {
	case !seen:
		return KindString
	case isInt:
		return KindInt
	case isFloat:
		return KindFloat
	case isBool:
		return KindBool
	case isTime:
		return KindTime
	}
	return KindString
}

// ParseValue converts text into a value of kind k. The empty string is a
// missing value.
func ParseValue(k Kind, s string) (any, error) {
	if s == "" {
		return nil, nil
	}

	switch k {
	case KindString, KindCategory:
		return s, nil
	case KindInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse %q as int: %w", s, err)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse %q as float: %w", s, err)
		}
		return v, nil
	case KindBool:
		v, ok := parseBool(s)
		if !ok {
			return nil, xerrors.Errorf("failed to parse %q as bool", s)
		}
		return v, nil
	case KindTime:
		v, ok := ParseTime(s)
		if !ok {
			return nil, xerrors.Errorf("failed to parse %q as time", s)
		}
		return v, nil
	}

	return nil, xerrors.Errorf("unknown kind %d", k)
}

// FormatValue renders a value the way staging files store it.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(timeWriteLayout)
	case []byte:
		return string(v)
	}
	return fmt.Sprint(v)
}

// Coerce converts an arbitrary driver value into kind k, going through its
// text form when the Go type does not already match.
func Coerce(k Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch k {
	case KindString, KindCategory:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	}

	return ParseValue(k, FormatValue(v))
}
