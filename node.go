package yamlupdate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	gyaml "github.com/goccy/go-yaml"
	"gopkg.in/yaml.v3"
)

// Documents are yaml.v3 node trees. A MappingNode keeps its entries as
// alternating key/value nodes in Content, so insertion order is the
// order of Content.

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func newSequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

// rootMapping returns the top-level mapping of a document or mapping node,
// creating it for an empty document.
func rootMapping(n *yaml.Node) (*yaml.Node, error) {
	if n == nil {
		return nil, errors.New("yamlupdate: nil document")
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			n.Content = []*yaml.Node{newMapping()}
		}
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("yamlupdate: document root is a %s, not a mapping", kindName(n))
	}
	return n, nil
}

// mapLookup returns the Content index of the first value stored under key,
// or -1 and nil when the key is absent.
func mapLookup(m *yaml.Node, key string) (int, *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if keyString(m.Content[i]) == key {
			return i + 1, m.Content[i+1]
		}
	}
	return -1, nil
}

func mapAppend(m *yaml.Node, key string, val *yaml.Node) {
	m.Content = append(m.Content, keyNode(key), val)
}

// mapDelete removes every entry stored under key.
func mapDelete(m *yaml.Node, key string) bool {
	out := m.Content[:0]
	removed := false
	for i := 0; i+1 < len(m.Content); i += 2 {
		if keyString(m.Content[i]) == key {
			removed = true
			continue
		}
		out = append(out, m.Content[i], m.Content[i+1])
	}
	m.Content = out
	return removed
}

func keyString(k *yaml.Node) string {
	if k.Kind == yaml.ScalarNode {
		return k.Value
	}
	return fmt.Sprint(plainValue(k))
}

// seqIndex resolves a possibly negative index against seq.
func seqIndex(seq *yaml.Node, i int) (int, bool) {
	if i < 0 {
		i += len(seq.Content)
	}
	return i, i >= 0 && i < len(seq.Content)
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// promote turns n into an empty mapping or sequence in place, keeping its
// comments.
func promote(n *yaml.Node, kind yaml.Kind) {
	n.Kind = kind
	n.Tag = "!!map"
	if kind == yaml.SequenceNode {
		n.Tag = "!!seq"
	}
	n.Value = ""
	n.Style = 0
	n.Content = nil
}

func kindName(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.ScalarNode:
		if isNull(n) {
			return "null"
		}
		return "scalar"
	default:
		return "unknown node"
	}
}

// cloneNode performs a deep clone of a yaml.Node.
func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	copy := *n
	if len(n.Content) > 0 {
		copy.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			copy.Content[i] = cloneNode(c)
		}
	}
	return &copy
}

// detachNode deep-clones n for use in another tree: aliases are replaced by
// copies of what they point at and anchors are dropped.
func detachNode(n *yaml.Node) *yaml.Node {
	n = deref(n)
	if n == nil {
		return nil
	}
	c := *n
	c.Anchor = ""
	c.Alias = nil
	c.Content = nil
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = detachNode(child)
		}
	}
	return &c
}

// copyComments copies inline and block comments from src to dst when present.
func copyComments(src, dst *yaml.Node) {
	if src == nil || dst == nil {
		return
	}
	if src.HeadComment != "" {
		dst.HeadComment = src.HeadComment
	}
	if src.LineComment != "" {
		dst.LineComment = src.LineComment
	}
	if src.FootComment != "" {
		dst.FootComment = src.FootComment
	}
}

// adopt clones v so it can replace old, carrying over old's comments and,
// when both are strings, old's quotes.
func adopt(old, v *yaml.Node) *yaml.Node {
	n := detachNode(v)
	if n == nil {
		n = nullNode()
	}
	copyComments(old, n)
	if old != nil && old.Kind == yaml.ScalarNode && n.Kind == yaml.ScalarNode &&
		n.Style == 0 && old.ShortTag() == "!!str" && n.ShortTag() == "!!str" {
		switch old.Style {
		case yaml.DoubleQuotedStyle, yaml.SingleQuotedStyle:
			n.Style = old.Style
		}
	}
	return n
}

// nodesEqual compares two trees by value: mapping order, scalar quoting and
// the spelling of nulls and numbers do not matter.
func nodesEqual(a, b *yaml.Node) bool {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case yaml.ScalarNode:
		return scalarsEqual(a, b)
	case yaml.SequenceNode:
		if len(a.Content) != len(b.Content) {
			return false
		}
		for i := range a.Content {
			if !nodesEqual(a.Content[i], b.Content[i]) {
				return false
			}
		}
		return true
	case yaml.MappingNode:
		if len(a.Content) != len(b.Content) {
			return false
		}
		for i := 0; i+1 < len(a.Content); i += 2 {
			_, bv := mapLookup(b, keyString(a.Content[i]))
			if bv == nil || !nodesEqual(a.Content[i+1], bv) {
				return false
			}
		}
		return true
	default:
		return a.Value == b.Value
	}
}

func scalarsEqual(a, b *yaml.Node) bool {
	va, vb := scalarValue(a), scalarValue(b)
	fa, aNum := asFloat(va)
	fb, bNum := asFloat(vb)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return va == vb
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// deref follows aliases and unwraps documents.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		default:
			return n
		}
	}
	return nil
}

// plainValue converts a YAML node to plain Go values: map[string]any, []any,
// string, int, float64, bool and nil.
func plainValue(n *yaml.Node) any {
	n = deref(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[keyString(n.Content[i])] = plainValue(n.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			arr = append(arr, plainValue(c))
		}
		return arr
	case yaml.ScalarNode:
		return scalarValue(n)
	default:
		return nil
	}
}

func scalarValue(n *yaml.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool", "!!int", "!!float":
		var v any
		if err := n.Decode(&v); err != nil {
			return n.Value
		}
		switch t := v.(type) {
		case bool:
			return t
		case int:
			return t
		case int64:
			return int(t)
		case uint64:
			return float64(t)
		case float64:
			if math.IsInf(t, 0) || math.IsNaN(t) {
				return n.Value
			}
			return t
		}
		return n.Value
	default:
		return n.Value
	}
}

// Ordered returns the document as an ordered logical view: mappings become
// gyaml.MapSlice in document order, sequences []any, scalars plain values.
func Ordered(doc *yaml.Node) gyaml.MapSlice {
	ms, _ := orderedValue(deref(doc)).(gyaml.MapSlice)
	return ms
}

func orderedValue(n *yaml.Node) any {
	n = deref(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		ms := make(gyaml.MapSlice, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			ms = append(ms, gyaml.MapItem{Key: keyString(n.Content[i]), Value: orderedValue(n.Content[i+1])})
		}
		return ms
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			arr = append(arr, orderedValue(c))
		}
		return arr
	case yaml.ScalarNode:
		return scalarValue(n)
	default:
		return nil
	}
}

// ToNode converts a Go value into a yaml.v3 Node, keeping the order of
// gyaml.MapSlice entries. Unordered maps are emitted with sorted keys.
func ToNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case nil:
		return nullNode(), nil
	case *yaml.Node:
		if t == nil {
			return nullNode(), nil
		}
		if t.Kind == yaml.DocumentNode {
			if len(t.Content) == 0 {
				return nullNode(), nil
			}
			return cloneNode(t.Content[0]), nil
		}
		return cloneNode(t), nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(t)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(t, 10)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(t, 'g', -1, 64)}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}, nil
	case []any:
		seq := newSequence()
		for _, e := range t {
			c, err := ToNode(e)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, c)
		}
		return seq, nil
	case gyaml.MapSlice:
		mp := newMapping()
		for _, it := range t {
			c, err := ToNode(it.Value)
			if err != nil {
				return nil, err
			}
			mapAppend(mp, fmt.Sprint(it.Key), c)
		}
		return mp, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		mp := newMapping()
		for _, k := range keys {
			c, err := ToNode(t[k])
			if err != nil {
				return nil, err
			}
			mapAppend(mp, k, c)
		}
		return mp, nil
	default:
		var n yaml.Node
		if err := n.Encode(t); err != nil {
			return nil, fmt.Errorf("yamlupdate: cannot convert %T: %w", v, err)
		}
		return &n, nil
	}
}

// forceBlock clears flow style markers so sequences/maps render in block style.
func forceBlock(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode {
		n.Style &^= yaml.FlowStyle
	}
	for _, c := range n.Content {
		forceBlock(c)
	}
}

// normalizeScalarStyle strips explicit quoting on scalars coming from a batch
// description so the edited document decides how they are quoted.
func normalizeScalarStyle(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.ScalarNode {
		switch n.Style {
		case yaml.DoubleQuotedStyle, yaml.SingleQuotedStyle:
			n.Style = 0
		}
	}
	for _, c := range n.Content {
		normalizeScalarStyle(c)
	}
}
