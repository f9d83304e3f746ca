package assets

import (
	"errors"
	"fmt"
)

var ErrUnknownKey = errors.New("unknown asset key")

func errUnknownKey(key string) error {
	return fmt.Errorf("%w: %s", ErrUnknownKey, key)
}
