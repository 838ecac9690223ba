package yamlupdate

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MergeRequest describes a desired tree to reconcile into a document.
type MergeRequest struct {
	// Source must be a mapping (or a document holding one).
	Source *yaml.Node
	// OverwriteTypeMismatch lets a source mapping replace a sequence in the
	// document, or a source sequence replace a mapping.
	OverwriteTypeMismatch bool
	// AllowAdd lets keys and sequence elements missing from the document be
	// added. Without it they are errors.
	AllowAdd bool
}

type merger struct {
	allowAdd  bool
	overwrite bool
	changed   bool
	log       *zap.Logger
}

// mergeMap reconciles every key of src into dst, in src order. Keys present
// only in dst are left alone.
func (m *merger) mergeMap(src, dst *yaml.Node, at string) error {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key := keyString(src.Content[i])
		sv := src.Content[i+1]
		here := joinKey(at, key)
		j, dv := mapLookup(dst, key)
		if dv == nil {
			if !m.allowAdd {
				return pathErr(ErrMissingKeyInTarget, here, nil)
			}
			mapAppend(dst, key, detachNode(sv))
			m.changed = true
			m.log.Debug("added key", logPath(here))
			continue
		}
		out, err := m.mergeNode(sv, dv, here)
		if err != nil {
			return err
		}
		dst.Content[j] = out
	}
	return nil
}

// mergeNode reconciles src into dst and returns the node that should take
// dst's place.
func (m *merger) mergeNode(src, dst *yaml.Node, at string) (*yaml.Node, error) {
	src = deref(src)
	orig := dst
	if d := deref(dst); isCollection(d) {
		dst = d
	}
	switch {
	case src.Kind == yaml.MappingNode && dst.Kind == yaml.MappingNode:
		return orig, m.mergeMap(src, dst, at)
	case src.Kind == yaml.SequenceNode && dst.Kind == yaml.SequenceNode:
		return orig, m.mergeSeq(src, dst, at)
	case isCollection(src) && isCollection(dst):
		if !m.overwrite {
			return orig, pathErr(ErrTypeMismatch, at, fmt.Errorf("source is a %s but the target is a %s", kindName(src), kindName(dst)))
		}
		m.changed = true
		m.log.Debug("replaced mismatched type", logPath(at))
		return adopt(orig, src), nil
	case nodesEqual(src, dst):
		return orig, nil
	default:
		m.changed = true
		m.log.Debug("replaced value", logPath(at))
		return adopt(orig, src), nil
	}
}

// mergeSeq reconciles src into dst by position. An element that is a
// sequence facing a sequence is matched record by record instead. Elements
// past the end of dst are appended; of the others only mappings are merged,
// every other element already in dst is left as it is.
func (m *merger) mergeSeq(src, dst *yaml.Node, at string) error {
	for i, sv := range src.Content {
		here := joinIndex(at, i)
		if deref(sv).Kind == yaml.SequenceNode && i < len(dst.Content) && deref(dst.Content[i]).Kind == yaml.SequenceNode {
			if err := m.matchRecords(deref(sv), deref(dst.Content[i]), here); err != nil {
				return err
			}
			continue
		}
		if i >= len(dst.Content) {
			if !m.allowAdd {
				return pathErr(ErrMissingIndexInTarget, here, nil)
			}
			dst.Content = append(dst.Content, detachNode(sv))
			m.changed = true
			m.log.Debug("appended element", logPath(here))
			continue
		}
		if deref(sv).Kind != yaml.MappingNode {
			continue
		}
		out, err := m.mergeNode(sv, dst.Content[i], here)
		if err != nil {
			return err
		}
		dst.Content[i] = out
	}
	return nil
}

func isCollection(n *yaml.Node) bool {
	return n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode
}
