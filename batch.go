package yamlupdate

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// batchFile is the YAML form of a Batch:
//
//	update:
//	  - key: spec.containers[0].image
//	    value: nginx:latest
//	  - key: user_list[-1].age
//	    value: 20
//	    added: true
//	  - key: user.age
//	    removed: true
//	values:
//	  metadata:
//	    namespace: default
//	overwrite: false
type batchFile struct {
	Update     []updateEntry `yaml:"update"`
	Values     yaml.Node     `yaml:"values"`
	Overwrite  bool          `yaml:"overwrite"`
	AddMissing *bool         `yaml:"add_missing"`
}

type updateEntry struct {
	Key     string    `yaml:"key"`
	Value   yaml.Node `yaml:"value"`
	Added   bool      `yaml:"added"`
	Removed bool      `yaml:"removed"`
}

// DecodeBatch reads a batch description. Values are merged with adding
// allowed unless add_missing is false.
func DecodeBatch(data []byte) (Batch, error) {
	var bf batchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil && !errors.Is(err, io.EOF) {
		return Batch{}, fmt.Errorf("yamlupdate: %w: batch: %w", ErrParse, err)
	}

	var b Batch
	for i, u := range bf.Update {
		if u.Key == "" {
			return Batch{}, fmt.Errorf("yamlupdate: %w: batch: update[%d] has no key", ErrParse, i)
		}
		p, err := ParsePath(u.Key)
		if err != nil {
			return Batch{}, err
		}
		op := Operation{Path: p, Added: u.Added, Removed: u.Removed}
		if u.Value.Kind != 0 {
			op.Value = batchValue(&u.Value)
		}
		b.Updates = append(b.Updates, op)
	}

	if bf.Values.Kind != 0 && !isNull(&bf.Values) {
		if bf.Values.Kind != yaml.MappingNode {
			return Batch{}, fmt.Errorf("yamlupdate: %w: batch: values must be a mapping, got a %s", ErrParse, kindName(&bf.Values))
		}
		b.Merge = &MergeRequest{
			Source:                batchValue(&bf.Values),
			OverwriteTypeMismatch: bf.Overwrite,
			AllowAdd:              bf.AddMissing == nil || *bf.AddMissing,
		}
	}
	return b, nil
}

// DecodeValues reads a mapping to merge into a document.
func DecodeValues(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlupdate: %w: values: %w", ErrParse, err)
	}
	n := deref(&doc)
	if n == nil || n.Kind == 0 || n.Kind == yaml.DocumentNode || isNull(n) {
		return newMapping(), nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("yamlupdate: %w: values must be a mapping, got a %s", ErrParse, kindName(n))
	}
	return batchValue(n), nil
}

// batchValue detaches a value from the batch document so it renders in the
// edited document's own style.
func batchValue(n *yaml.Node) *yaml.Node {
	c := cloneNode(n)
	forceBlock(c)
	normalizeScalarStyle(c)
	stripPositions(c)
	return c
}

func stripPositions(n *yaml.Node) {
	n.Line, n.Column = 0, 0
	for _, c := range n.Content {
		stripPositions(c)
	}
}
