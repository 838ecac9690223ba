package yamlupdate

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Result reports the outcome of a batch applied to a document.
type Result struct {
	// Changed is set when at least one operation altered the document.
	Changed bool
	// Document is the document after the batch. It is nil in check mode.
	Document *yaml.Node
	// Before and After hold the encoded document before and after the
	// batch. After equals Before when nothing changed.
	Before []byte
	After  []byte
}

// UpdateBytes applies b to the YAML in data. It never fails halfway: on
// error no result document is returned.
func UpdateBytes(data []byte, b Batch, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	return updateBytes(c, data, b)
}

func updateBytes(c *config, data []byte, b Batch) (*Result, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	changed, err := newEditor(c).Apply(doc, b)
	if err != nil {
		return nil, err
	}
	res := &Result{Changed: changed, Document: doc, Before: data, After: data}
	if !changed {
		return res, nil
	}
	out, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	res.After = out
	return res, nil
}

// UpdateFile applies b to the YAML file at filename. The file is rewritten
// in place only when the whole batch succeeded and changed something. In
// check mode nothing is read or written and an unchanged Result is
// returned.
func UpdateFile(filename string, b Batch, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	log := c.log.With(zap.String("file", filename))
	if c.check {
		log.Debug("check mode, leaving file untouched")
		return &Result{}, nil
	}
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("yamlupdate: %w", err)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("yamlupdate: %w", err)
	}
	res, err := updateBytes(c, data, b)
	if err != nil {
		log.Debug("batch failed, file left untouched", zap.Error(err))
		return nil, err
	}
	if !res.Changed {
		log.Debug("no change")
		return res, nil
	}
	if err := os.WriteFile(filename, res.After, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("yamlupdate: %w", err)
	}
	log.Debug("file updated", zap.Int("bytes", len(res.After)))
	return res, nil
}
