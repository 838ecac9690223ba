package yamlupdate

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// mutate writes value at p, or removes the entry at p when removed is set,
// and reports whether the document changed. The path is expected to have
// been checked by walk; failures here mean the tree is not what walk left.
func mutate(root *yaml.Node, p Path, value *yaml.Node, removed bool) (bool, error) {
	if len(p) == 0 {
		return false, pathErr(ErrInvalidTerminal, "", errors.New("empty path"))
	}
	at := p.String()
	parent := root
	for i, seg := range p[:len(p)-1] {
		next := lookup(parent, seg)
		if next == nil {
			return false, pathErr(ErrInvalidTerminal, p[:i+1].String(), nil)
		}
		parent = next
	}
	parent = deref(parent)
	if parent.Kind != yaml.MappingNode {
		return false, pathErr(ErrInvalidTerminal, at, fmt.Errorf("parent is a %s", kindName(parent)))
	}

	last := p[len(p)-1]
	i, cur := mapLookup(parent, last.Key)
	if !last.Indexed {
		if removed {
			return mapDelete(parent, last.Key), nil
		}
		if cur == nil {
			return false, pathErr(ErrInvalidTerminal, at, fmt.Errorf("invalid key %q", last.Key))
		}
		return assign(parent.Content, i, value), nil
	}

	cur = deref(cur)
	if cur == nil || cur.Kind != yaml.SequenceNode {
		if removed {
			return false, nil
		}
		return false, pathErr(ErrInvalidTerminal, at, fmt.Errorf("invalid index %d for key %q", last.Index, last.Key))
	}
	idx, ok := seqIndex(cur, last.Index)
	if !ok {
		if removed {
			return false, nil
		}
		return false, pathErr(ErrIndexOutOfRange, at, fmt.Errorf("length is %d", len(cur.Content)))
	}
	if removed {
		cur.Content = append(cur.Content[:idx], cur.Content[idx+1:]...)
		return true, nil
	}
	return assign(cur.Content, idx, value), nil
}

// assign replaces content[i] with value unless they are already equal.
func assign(content []*yaml.Node, i int, value *yaml.Node) bool {
	if value == nil {
		value = nullNode()
	}
	if nodesEqual(content[i], value) {
		return false
	}
	content[i] = adopt(content[i], value)
	return true
}

// lookup returns the node selected by seg below n, or nil when it does not
// exist.
func lookup(n *yaml.Node, seg Segment) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	_, v := mapLookup(n, seg.Key)
	v = deref(v)
	if v == nil || !seg.Indexed {
		return v
	}
	if v.Kind != yaml.SequenceNode {
		return nil
	}
	idx, ok := seqIndex(v, seg.Index)
	if !ok {
		return nil
	}
	return v.Content[idx]
}

// Get returns the node at path in doc.
func Get(doc *yaml.Node, path string) (*yaml.Node, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur, err := rootMapping(doc)
	if err != nil {
		return nil, err
	}
	for i, seg := range p {
		next := lookup(cur, seg)
		if next == nil {
			kind := ErrPathNotFound
			if c := deref(cur); seg.Indexed && c.Kind == yaml.MappingNode {
				if _, v := mapLookup(c, seg.Key); deref(v) != nil && deref(v).Kind == yaml.SequenceNode {
					kind = ErrIndexOutOfRange
				}
			}
			return nil, pathErr(kind, p[:i+1].String(), nil)
		}
		cur = next
	}
	return cur, nil
}
