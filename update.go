package yamlupdate

import (
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Operation is a single path-addressed edit.
//
// Removed deletes the entry at Path and never fails when it is already
// absent. Otherwise Value (nil meaning null) is written at Path; with Added
// missing mappings along the way are created, without it the whole path
// must already exist.
type Operation struct {
	Path    Path
	Value   *yaml.Node
	Added   bool
	Removed bool
}

// SetOp returns an operation writing value at path.
func SetOp(path string, value any, added bool) (Operation, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Operation{}, err
	}
	n, err := ToNode(value)
	if err != nil {
		return Operation{}, err
	}
	return Operation{Path: p, Value: n, Added: added}, nil
}

// RemoveOp returns an operation deleting the entry at path.
func RemoveOp(path string) (Operation, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Operation{}, err
	}
	return Operation{Path: p, Removed: true}, nil
}

// Batch is an ordered list of operations followed by an optional merge.
type Batch struct {
	Updates []Operation
	Merge   *MergeRequest
}

// Editor applies operations to documents.
type Editor struct {
	log *zap.Logger
}

// NewEditor returns an Editor configured by opts.
func NewEditor(opts ...Option) *Editor {
	return newEditor(newConfig(opts))
}

func newEditor(c *config) *Editor {
	return &Editor{log: c.log}
}

// Update applies op to doc and reports whether doc changed.
func (e *Editor) Update(doc *yaml.Node, op Operation) (bool, error) {
	root, err := rootMapping(doc)
	if err != nil {
		return false, err
	}
	mode := walkStrict
	switch {
	case op.Removed:
		mode = walkRemove
	case op.Added:
		mode = walkAdd
	}
	created, found, err := walk(root, op.Path, mode)
	if err != nil {
		return false, err
	}
	if !found {
		e.log.Debug("path absent, nothing to remove", logPath(op.Path.String()))
		return false, nil
	}
	changed, err := mutate(root, op.Path, op.Value, op.Removed)
	if err != nil {
		return false, err
	}
	changed = changed || created
	e.log.Debug("applied update",
		logPath(op.Path.String()),
		zap.Stringer("mode", mode),
		zap.Bool("changed", changed))
	return changed, nil
}

// Merge reconciles req.Source into doc and reports whether doc changed.
func (e *Editor) Merge(doc *yaml.Node, req MergeRequest) (bool, error) {
	root, err := rootMapping(doc)
	if err != nil {
		return false, err
	}
	src, err := rootMapping(req.Source)
	if err != nil {
		return false, pathErr(ErrTypeMismatch, "", err)
	}
	m := &merger{allowAdd: req.AllowAdd, overwrite: req.OverwriteTypeMismatch, log: e.log}
	if err := m.mergeMap(src, root, ""); err != nil {
		return false, err
	}
	e.log.Debug("merged values",
		zap.Bool("allow_add", req.AllowAdd),
		zap.Bool("overwrite", req.OverwriteTypeMismatch),
		zap.Bool("changed", m.changed))
	return m.changed, nil
}

// Apply runs every update of b in order, then its merge. It stops at the
// first error; doc may then hold part of the batch and should be discarded.
func (e *Editor) Apply(doc *yaml.Node, b Batch) (bool, error) {
	changed := false
	for _, op := range b.Updates {
		c, err := e.Update(doc, op)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	if b.Merge != nil {
		c, err := e.Merge(doc, *b.Merge)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

var defaultEditor = NewEditor()

// Update applies op to doc with a default Editor.
func Update(doc *yaml.Node, op Operation) (bool, error) {
	return defaultEditor.Update(doc, op)
}

// Merge reconciles req into doc with a default Editor.
func Merge(doc *yaml.Node, req MergeRequest) (bool, error) {
	return defaultEditor.Merge(doc, req)
}

// Apply runs b against doc with a default Editor.
func Apply(doc *yaml.Node, b Batch) (bool, error) {
	return defaultEditor.Apply(doc, b)
}
