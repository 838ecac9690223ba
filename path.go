package yamlupdate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment selects the entry stored under Key in a mapping. When Indexed is
// set it selects element Index of the sequence stored under Key instead;
// negative indices count from the end.
type Segment struct {
	Key     string
	Index   int
	Indexed bool
}

func (s Segment) String() string {
	if !s.Indexed {
		return s.Key
	}
	return s.Key + "[" + strconv.Itoa(s.Index) + "]"
}

// Path is a resolved key path, outermost segment first.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

var indexedSegment = regexp.MustCompile(`^([^\[\]]*)\[(-?[0-9]+)\]$`)

// ParsePath resolves a key path such as "spec.containers[0].image".
//
// The string is split on every '.'; there is no way to escape a dot that is
// part of a key name. A segment may carry one trailing "[N]" index, N being
// a decimal integer that may be negative.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, pathErr(ErrParse, s, errors.New("empty path"))
	}
	tokens := strings.Split(s, ".")
	p := make(Path, 0, len(tokens))
	for _, tok := range tokens {
		if !strings.ContainsAny(tok, "[]") {
			p = append(p, Segment{Key: tok})
			continue
		}
		m := indexedSegment.FindStringSubmatch(tok)
		if m == nil {
			return nil, pathErr(ErrParse, s, fmt.Errorf("malformed segment %q", tok))
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, pathErr(ErrParse, s, fmt.Errorf("segment %q: %w", tok, err))
		}
		p = append(p, Segment{Key: m[1], Index: idx, Indexed: true})
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func joinKey(at, key string) string {
	if at == "" {
		return key
	}
	return at + "." + key
}

func joinIndex(at string, i int) string {
	return at + "[" + strconv.Itoa(i) + "]"
}
