package coin_registry

import (
	"fmt"
	"strings"
)

// Size is the image variant served by the origin host.
type Size string

const (
	SizeSmall Size = "small"
	SizeLarge Size = "large"
	SizeThumb Size = "thumb"
)

// DefaultSize is used when the caller does not ask for one.
const DefaultSize = SizeSmall

func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeLarge, SizeThumb:
		return true
	default:
		return false
	}
}

func (s Size) String() string {
	return string(s)
}

// ParseSize parses a size query value. An empty value yields DefaultSize.
func ParseSize(value string) (Size, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultSize, nil
	}

	size := Size(value)
	if !size.Valid() {
		return "", fmt.Errorf("invalid size %q (supported: small, large, thumb)", value)
	}
	return size, nil
}
