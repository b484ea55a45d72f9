// Package label maps clip paths to integer class ids.
package label

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrLabelParse is returned when a path does not carry a usable class id.
var ErrLabelParse = errors.New("label: cannot parse class id")

// Resolver maps a clip path to a class id in [0, NumClasses).
type Resolver interface {
	Resolve(path string) (int, error)
}

// Func adapts an ordinary function to the Resolver interface.
type Func func(path string) (int, error)

// Resolve calls f(path).
func (f Func) Resolve(path string) (int, error) {
	return f(path)
}

// Compile-time checks.
var (
	_ Resolver = FoldFilename{}
	_ Resolver = Func(nil)
)

// FoldFilename resolves names of the form ".../fold<K>-<class>-<...>", where
// the class id is the token between the first and second '-' following the
// last path component that starts with "fold". Directories above the fold
// directory may contain "fold" freely.
//
//	UrbanSound8K/audio/fold3/7061-6-0-0.wav -> 6
//	/data/fold-sets/audio/fold3/7061-6-0-0.wav -> 6
type FoldFilename struct {
	// NumClasses bounds the accepted ids. Zero disables the bound.
	NumClasses int
}

// Resolve implements Resolver.
func (r FoldFilename) Resolve(path string) (int, error) {
	slashed := filepath.ToSlash(path)

	idx := foldComponent(slashed)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q has no fold component", ErrLabelParse, path)
	}

	parts := strings.Split(slashed[idx+len("fold"):], "-")
	if len(parts) < 3 {
		return 0, fmt.Errorf("%w: %q is not <fsID>-<class>-<occurrence>-<slice>", ErrLabelParse, path)
	}

	class, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: class token %q is not an integer", ErrLabelParse, path, parts[1])
	}
	if class < 0 || (r.NumClasses > 0 && class >= r.NumClasses) {
		return 0, fmt.Errorf("%w: %q: class %d out of range [0, %d)", ErrLabelParse, path, class, r.NumClasses)
	}

	return class, nil
}

// foldComponent returns the offset of the last path component starting with
// "fold", or -1.
func foldComponent(slashed string) int {
	if i := strings.LastIndex(slashed, "/fold"); i >= 0 {
		return i + 1
	}
	if strings.HasPrefix(slashed, "fold") {
		return 0
	}
	return -1
}
