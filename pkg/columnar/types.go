package columnar

import "strings"

// Type is the declared type of a column.
type Type uint8

const (
	// TypeNull marks a column with no source; every cell is null.
	TypeNull Type = iota
	TypeBool
	TypeInt64
	TypeFloat64
	TypeString
	// TypeDate holds days since 1970-01-01.
	TypeDate
	// TypeTimestamp holds microseconds since the epoch, UTC.
	TypeTimestamp
)

var typeNames = [...]string{
	TypeNull:      "null",
	TypeBool:      "bool",
	TypeInt64:     "int64",
	TypeFloat64:   "float64",
	TypeString:    "string",
	TypeDate:      "date",
	TypeTimestamp: "timestamp",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// IsNumeric reports whether values of t coerce to float64.
func (t Type) IsNumeric() bool {
	return t == TypeInt64 || t == TypeFloat64
}

// IsTemporal reports whether t is a date or a timestamp.
func (t Type) IsTemporal() bool {
	return t == TypeDate || t == TypeTimestamp
}

// ParseType resolves a type name, accepting the common aliases used in plans.
func ParseType(name string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "int64", "integer", "long":
		return TypeInt64, true
	case "float", "float64", "double", "number":
		return TypeFloat64, true
	case "string", "str", "text":
		return TypeString, true
	case "bool", "boolean":
		return TypeBool, true
	case "date":
		return TypeDate, true
	case "timestamp", "datetime":
		return TypeTimestamp, true
	case "null":
		return TypeNull, true
	}
	return TypeNull, false
}

// Field names and types a column.
type Field struct {
	Name string
	Type Type
}
