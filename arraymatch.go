package yamlupdate

import (
	"fmt"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// presentQuery reports whether any object of .list has .key equal to .value.
var presentQuery = mustCompileJQ(`.key as $k | .value as $v | any(.list[]; type == "object" and has($k) and .[$k] == $v)`)

func mustCompileJQ(src string) *gojq.Code {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("yamlupdate: parse jq %q: %v", src, err))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(fmt.Sprintf("yamlupdate: compile jq %q: %v", src, err))
	}
	return code
}

// represented reports whether some mapping in list holds key == value.
func represented(list []any, key string, value any) (bool, error) {
	iter := presentQuery.Run(map[string]any{"list": list, "key": key, "value": value})
	for {
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, ok := v.(error); ok {
			return false, fmt.Errorf("yamlupdate: match %q: %w", key, err)
		}
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
}

// missingFields returns, in record order, the keys of record whose
// key/value pair is held by no mapping of list.
func missingFields(record *yaml.Node, list []any) ([]string, error) {
	var missing []string
	seen := map[string]bool{}
	for i := 0; i+1 < len(record.Content); i += 2 {
		key := keyString(record.Content[i])
		if seen[key] {
			continue
		}
		seen[key] = true
		ok, err := represented(list, key, plainValue(record.Content[i+1]))
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

// matchRecords makes sure every record of src is represented somewhere in
// dst. For a mapping record the fields no dst mapping matches are appended
// to dst as one new partial record; a scalar record is appended when dst has
// no equal element. Existing dst elements are never modified.
func (m *merger) matchRecords(src, dst *yaml.Node, at string) error {
	list, _ := plainValue(dst).([]any)
	for i, rec := range src.Content {
		var add *yaml.Node
		if deref(rec) != nil && deref(rec).Kind == yaml.MappingNode {
			rec = deref(rec)
			missing, err := missingFields(rec, list)
			if err != nil {
				return fmt.Errorf("%w (at %s)", err, joinIndex(at, i))
			}
			if len(missing) == 0 {
				continue
			}
			add = newMapping()
			for _, k := range missing {
				_, v := mapLookup(rec, k)
				mapAppend(add, k, detachNode(v))
			}
		} else {
			if containsEqual(dst, rec) {
				continue
			}
			add = detachNode(rec)
		}
		dst.Content = append(dst.Content, add)
		list = append(list, plainValue(add))
		m.changed = true
		m.log.Debug("appended record", logPath(joinIndex(at, len(dst.Content)-1)))
	}
	return nil
}

func containsEqual(seq, n *yaml.Node) bool {
	for _, c := range seq.Content {
		if nodesEqual(c, n) {
			return true
		}
	}
	return false
}
