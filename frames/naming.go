package frames

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/unixpickle/essentials"
)

// A Naming determines the file name of a frame, given the
// frame's index.
// It is a fmt format string with one integer verb.
type Naming string

// These are the frame naming schemes found in the
// supported datasets.
const (
	ImageNaming Naming = "image_%05d.jpg"
	PlainNaming Naming = "%06d.jpg"
)

// ParseNaming converts a configuration name ("image" or
// "plain") or a literal format string into a Naming.
func ParseNaming(name string) (Naming, error) {
	switch name {
	case "", "image":
		return ImageNaming, nil
	case "plain":
		return PlainNaming, nil
	}
	if !namingExpr.MatchString(name) {
		return "", fmt.Errorf("parse naming: invalid format %q", name)
	}
	return Naming(name), nil
}

var namingExpr = regexp.MustCompile(`^[^%]*%0?[0-9]*d[^%]*$`)

// Name returns the file name for the frame index.
func (n Naming) Name(index int) string {
	return fmt.Sprintf(string(n), index)
}

// Path returns the path of a frame inside a video's frame
// directory.
func (n Naming) Path(dir string, index int) string {
	return filepath.Join(dir, n.Name(index))
}

var frameNumberExpr = regexp.MustCompile(`\d+`)

// LastIndex finds the index of the last frame in a video's
// frame directory.
//
// The index is the first number in the name of the
// lexicographically last file, which matches the zero
// padded naming schemes.
func LastIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, essentials.AddCtx("last frame index", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return 0, errors.New("last frame index: no frames in " + dir)
	}
	sort.Strings(names)
	last := names[len(names)-1]
	match := frameNumberExpr.FindString(last)
	if match == "" {
		return 0, fmt.Errorf("last frame index: no number in %s", last)
	}
	return strconv.Atoi(match)
}
