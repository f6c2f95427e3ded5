package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Pseudotype labels stored in _column_definitions. These describe the
// application-level shape of a column's values, not the storage type.
const (
	pseudotypeString  = "string"
	pseudotypeInteger = "integer"
	pseudotypeArray   = "array"
)

// convertPseudotype converts a value from its source pseudotype to its
// target pseudotype. The caller skips the call entirely when the two types
// are equal. The second return is false when the (source, target) pair has
// no conversion rule; the value is then passed through unchanged and the
// caller records the pair in the unsupported-conversions log.
//
// Conversion failures never abort a row: every rule has a documented
// fallback value.
func convertPseudotype(value any, sourceType, targetType, column string) (any, bool) {
	if value == nil {
		return nil, true
	}

	switch {
	case sourceType == pseudotypeString && targetType == pseudotypeArray:
		return stringToArray(value, column), true

	case sourceType == pseudotypeInteger && targetType == pseudotypeArray:
		return integerToArray(value, column), true

	case sourceType == pseudotypeArray && targetType == pseudotypeString:
		return arrayToString(value, column), true
	}

	return value, false
}

// stringToArray wraps a scalar string in a single-element JSON array.
// Values that already look like a JSON array literal are trusted to be
// well-formed and returned unchanged.
func stringToArray(value any, column string) any {
	s, ok := stringValue(value)
	if !ok {
		s = fmt.Sprint(value)
	}
	if looksLikeJSONArray(s) {
		return s
	}
	out, err := json.Marshal([]string{s})
	if err != nil {
		log.Printf("  WARN: converting string to array for column %s: %v", column, err)
		out, _ = json.Marshal([]string{fmt.Sprint(value)})
	}
	return string(out)
}

// integerToArray stringifies an integer and wraps it in a single-element
// JSON array. Non-numeric values fall back to ["0"].
func integerToArray(value any, column string) any {
	var s string
	switch v := value.(type) {
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case string, []byte:
		raw, _ := stringValue(v)
		if _, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err != nil {
			log.Printf("  WARN: converting integer to array for column %s: non-numeric value %q", column, raw)
			return `["0"]`
		}
		s = strings.TrimSpace(raw)
	default:
		log.Printf("  WARN: converting integer to array for column %s: unexpected type %T", column, value)
		return `["0"]`
	}
	out, _ := json.Marshal([]string{s})
	return string(out)
}

// arrayToString takes element 0 of a JSON array value, the empty string for
// an empty array, and the plain string form when parsing fails.
func arrayToString(value any, column string) any {
	s, ok := stringValue(value)
	if !ok || !looksLikeJSONArray(s) {
		return fmt.Sprint(value)
	}
	var elems []any
	if err := json.Unmarshal([]byte(s), &elems); err != nil {
		log.Printf("  WARN: converting array to string for column %s: %v", column, err)
		return s
	}
	if len(elems) == 0 {
		return ""
	}
	return elems[0]
}

func looksLikeJSONArray(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

// stringValue unwraps string-shaped driver values.
func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// truncateValue renders a value for the unsupported-conversions log,
// capped at 100 characters.
func truncateValue(value any) string {
	s := fmt.Sprint(value)
	if len(s) > 100 {
		return s[:100]
	}
	return s
}
