package yamlupdate

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	gyaml "github.com/goccy/go-yaml"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// UpdatedValues returns the resulting document as an ordered mapping.
func (r *Result) UpdatedValues() gyaml.MapSlice {
	if r == nil || r.Document == nil {
		return nil
	}
	return Ordered(r.Document)
}

// MergePatch returns an RFC 7386 merge patch that turns the document before
// the batch into the document after it. It is "{}" when nothing changed.
func (r *Result) MergePatch() ([]byte, error) {
	if r == nil || !r.Changed {
		return []byte("{}"), nil
	}
	before, err := documentJSON(r.Before)
	if err != nil {
		return nil, err
	}
	after, err := documentJSON(r.After)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, fmt.Errorf("yamlupdate: merge patch: %w", err)
	}
	return patch, nil
}

func documentJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlupdate: %w: %w", ErrParse, err)
	}
	v := plainValue(&doc)
	if v == nil {
		v = map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yamlupdate: json: %w", err)
	}
	return b, nil
}

// Diff returns a unified diff of the document before and after the batch,
// labelled with name. It is empty when nothing changed.
func (r *Result) Diff(name string) (string, error) {
	if r == nil || !r.Changed {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(r.Before)),
		B:        difflib.SplitLines(string(r.After)),
		FromFile: name,
		ToFile:   name,
		Context:  3,
	})
}
