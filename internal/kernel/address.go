package kernel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address names one field endpoint: "module.field" or "module.field[index]".
type Address struct {
	Module string
	Field  string
	Index  int
}

var fieldSegment = regexp.MustCompile(`^([A-Za-z0-9_-]+)(?:\[(\d+)\])?$`)

// ParseAddress parses the canonical form of an Address. The module name is
// everything before the last dot, so module names may themselves contain dots.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	dot := strings.LastIndex(raw, ".")
	if dot <= 0 || dot == len(raw)-1 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	matches := fieldSegment.FindStringSubmatch(raw[dot+1:])
	if matches == nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	addr := Address{Module: raw[:dot], Field: matches[1], Index: NoIndex}
	if matches[2] != "" {
		i, err := strconv.Atoi(matches[2])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, raw, err)
		}
		addr.Index = i
	}
	return addr, nil
}

func (a Address) String() string {
	if a.Index == NoIndex {
		return a.Module + "." + a.Field
	}
	return fmt.Sprintf("%s.%s[%d]", a.Module, a.Field, a.Index)
}
