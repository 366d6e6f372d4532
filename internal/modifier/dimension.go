package modifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var maxTokenPattern = regexp.MustCompile(`(?i)^max_([1-9]\d*)$`)

// Dimension is a resize argument: either an exact pixel value (0 meaning
// "derive from the other side") or an upper bound.
type Dimension struct {
	Value int
	Max   bool
}

func Exact(px int) Dimension {
	return Dimension{Value: px}
}

func Max(px int) Dimension {
	return Dimension{Value: px, Max: true}
}

// ParseDimension accepts an integer ("600") or a bound ("max_800").
func ParseDimension(token string) (Dimension, error) {
	token = strings.TrimSpace(token)
	if m := maxTokenPattern.FindStringSubmatch(token); m != nil {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return Dimension{}, fmt.Errorf("%w: %q", ErrInvalidDimension, token)
		}
		return Max(v), nil
	}

	v, err := strconv.Atoi(token)
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: %q", ErrInvalidDimension, token)
	}
	return Exact(v), nil
}

func (d Dimension) String() string {
	if d.Max {
		return "max_" + strconv.Itoa(d.Value)
	}
	return strconv.Itoa(d.Value)
}
