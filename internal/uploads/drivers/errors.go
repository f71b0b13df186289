package drivers

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by every driver when nothing is stored under a key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that could escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key != path.Clean(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
