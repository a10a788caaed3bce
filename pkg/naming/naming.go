// Package naming encodes the position of a tile into its storage name.
//
// A tile name has the form
//
//	{identifier}_{row}_{col}_patch[_{suffix}]
//
// and is the only placement metadata that survives once a tile is written to
// a patch store. Names are parsed back into positions only at the storage
// boundary.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Delimiter is the segment that marks the end of the positional part of a
// tile name
const Delimiter = "patch"

// Ext is the file extension used when tiles are stored as files
const Ext = ".png"

// Suffix qualifies what a stored tile contains
type Suffix string

const (
	// None marks a raw source tile
	None Suffix = ""
	// Predicted marks a colour-encoded model prediction
	Predicted Suffix = "predicted"
	// GroundTruth marks a colour-encoded label tile
	GroundTruth Suffix = "groundtruth"
)

var (
	// ErrMalformedName is returned when a name does not carry a position
	ErrMalformedName = errors.New("malformed tile name")

	// ErrInvalidIdentifier is returned when an identifier could not be
	// decoded back unambiguously
	ErrInvalidIdentifier = errors.New("invalid tile identifier")
)

// Parsed is the positional content of a tile name
type Parsed struct {
	Identifier string
	Row        int
	Col        int
	Suffix     Suffix
}

// Encode builds the canonical name of the tile at row, col of identifier
func Encode(identifier string, row, col int, suffix Suffix) (string, error) {
	if err := ValidateIdentifier(identifier); err != nil {
		return "", err
	}
	if row < 0 || col < 0 {
		return "", fmt.Errorf("%w: negative tile index (%d, %d)", ErrInvalidIdentifier, row, col)
	}
	if strings.Contains(string(suffix), "_") || suffix == Delimiter {
		return "", fmt.Errorf("%w: suffix %q contains a delimiter", ErrInvalidIdentifier, suffix)
	}

	name := identifier + "_" + strconv.Itoa(row) + "_" + strconv.Itoa(col) + "_" + Delimiter
	if suffix != None {
		name += "_" + string(suffix)
	}
	return name, nil
}

// ValidateIdentifier rejects identifiers that Decode could not recover
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidIdentifier)
	}
	for _, seg := range strings.Split(identifier, "_") {
		if seg == Delimiter {
			return fmt.Errorf("%w: %q contains the %q segment", ErrInvalidIdentifier, identifier, Delimiter)
		}
	}
	return nil
}

// Decode recovers the identifier and tile position from a name.
// The last "patch" segment is the anchor; the two segments before it are the
// row and column and at most one suffix segment may follow it.
func Decode(name string) (Parsed, error) {
	parts := strings.Split(name, "_")

	anchor := -1
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == Delimiter {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return Parsed{}, fmt.Errorf("%w: %q has no %q segment", ErrMalformedName, name, Delimiter)
	}
	if anchor < 3 {
		return Parsed{}, fmt.Errorf("%w: %q has no identifier before its position", ErrMalformedName, name)
	}
	if trailing := len(parts) - anchor - 1; trailing > 1 {
		return Parsed{}, fmt.Errorf("%w: %q has %d segments after %q", ErrMalformedName, name, trailing, Delimiter)
	}

	row, err := index(parts[anchor-2])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %q row: %v", ErrMalformedName, name, err)
	}
	col, err := index(parts[anchor-1])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %q col: %v", ErrMalformedName, name, err)
	}

	identifier := strings.Join(parts[:anchor-2], "_")
	if identifier == "" {
		return Parsed{}, fmt.Errorf("%w: %q has an empty identifier", ErrMalformedName, name)
	}

	p := Parsed{
		Identifier: identifier,
		Row:        row,
		Col:        col,
	}
	if anchor+1 < len(parts) {
		p.Suffix = Suffix(parts[anchor+1])
	}
	return p, nil
}

// Identifier strips the trailing _{row}_{col}_patch[_{suffix}] from name.
// It agrees with Decode for every name produced by Encode.
func Identifier(name string) (string, error) {
	marker := "_" + Delimiter
	cut := -1
	for end := len(name); end > 0; {
		i := strings.LastIndex(name[:end], marker)
		if i < 0 {
			break
		}
		if rest := name[i+len(marker):]; rest == "" || rest[0] == '_' {
			if rest != "" && strings.Contains(rest[1:], "_") {
				return "", fmt.Errorf("%w: %q has more than one segment after %q", ErrMalformedName, name, Delimiter)
			}
			cut = i
			break
		}
		end = i
	}
	if cut < 0 {
		return "", fmt.Errorf("%w: %q has no %q segment", ErrMalformedName, name, Delimiter)
	}

	// drop _{col} then _{row}
	head := name[:cut]
	for i := 0; i < 2; i++ {
		j := strings.LastIndex(head, "_")
		if j <= 0 {
			return "", fmt.Errorf("%w: %q has no identifier before its position", ErrMalformedName, name)
		}
		if _, err := index(head[j+1:]); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrMalformedName, name, err)
		}
		head = head[:j]
	}
	return head, nil
}

// WithExt returns the storage filename for a tile name
func WithExt(name string) string {
	return name + Ext
}

// StripExt removes a trailing file extension from a stored filename
func StripExt(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// Sanitize replaces characters other than letters, digits, '_', '.' and '-'
// with '_'
func Sanitize(filename string) string {
	return unsafeChars.ReplaceAllString(filename, "_")
}

// IdentifierFromFilename derives a source identifier from an uploaded file
// name: the sanitised base name without its extension
func IdentifierFromFilename(filename string) string {
	base := Sanitize(filepath.Base(filename))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func index(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("index %q is not a non-negative integer", s)
	}
	return n, nil
}
