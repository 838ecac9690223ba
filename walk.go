package yamlupdate

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type walkMode int

const (
	// walkStrict requires every segment to exist.
	walkStrict walkMode = iota
	// walkAdd creates missing mapping keys and extends short sequences.
	walkAdd
	// walkRemove stops quietly at the first missing segment.
	walkRemove
)

func (m walkMode) String() string {
	switch m {
	case walkAdd:
		return "add"
	case walkRemove:
		return "remove"
	default:
		return "strict"
	}
}

// walk follows p from the mapping root down to and including the last
// segment. created reports whether any scaffolding was added; found is false
// only when a walkRemove walk stopped at a missing segment.
//
// In walkAdd mode a sequence that is too short for a non-negative index gets
// exactly one empty mapping appended, however far the index lies beyond its
// end. If the index is still out of range afterwards the walk fails; an
// out-of-range negative index fails without extending anything. Aliases
// are followed.
func walk(root *yaml.Node, p Path, mode walkMode) (created, found bool, err error) {
	cur := root
	for i, seg := range p {
		at := p[:i+1].String()
		cur = deref(cur)

		if cur.Kind != yaml.MappingNode {
			switch {
			case mode == walkRemove:
				return created, false, nil
			case mode == walkAdd && isNull(cur):
				promote(cur, yaml.MappingNode)
				created = true
			default:
				return created, false, pathErr(ErrPathNotFound, at, fmt.Errorf("parent is a %s, not a mapping", kindName(cur)))
			}
		}

		_, val := mapLookup(cur, seg.Key)
		if val == nil {
			switch mode {
			case walkRemove:
				return created, false, nil
			case walkAdd:
				if seg.Indexed {
					val = newSequence(newMapping())
				} else {
					val = newMapping()
				}
				mapAppend(cur, seg.Key, val)
				created = true
			default:
				return created, false, pathErr(ErrPathNotFound, at, nil)
			}
		}
		val = deref(val)
		if !seg.Indexed {
			cur = val
			continue
		}

		if val.Kind != yaml.SequenceNode {
			switch {
			case mode == walkRemove:
				return created, false, nil
			case mode == walkAdd && isNull(val):
				promote(val, yaml.SequenceNode)
				created = true
			default:
				return created, false, pathErr(ErrPathNotFound, at, fmt.Errorf("%q is a %s, not a sequence", seg.Key, kindName(val)))
			}
		}
		idx, ok := seqIndex(val, seg.Index)
		if !ok {
			switch mode {
			case walkRemove:
				return created, false, nil
			case walkAdd:
				if seg.Index >= 0 {
					val.Content = append(val.Content, newMapping())
					created = true
					idx, ok = seqIndex(val, seg.Index)
				}
			}
		}
		if !ok {
			return created, false, pathErr(ErrIndexOutOfRange, at, fmt.Errorf("length is %d", len(val.Content)))
		}
		cur = val.Content[idx]
	}
	return created, true, nil
}
