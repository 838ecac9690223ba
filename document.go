package yamlupdate

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"weak"

	"gopkg.in/yaml.v3"
)

// docMeta holds formatting hints captured at parse time.
type docMeta struct {
	indent        int
	finalNewline  bool
	indentless    []indentlessInfo
	commentSpaces map[string]int
	blockScalars  map[*yaml.Node]blockInfo
}

type blockInfo struct {
	header string
	body   string
	indent int
	value  string
}

type indentlessInfo struct {
	key    string
	indent int
}

// Formatting hints are keyed weakly by document so that dropping a document
// also drops its entry.
var (
	metaMu    sync.RWMutex
	metaByDoc = map[weak.Pointer[yaml.Node]]docMeta{}
)

// Parse reads YAML data into a yaml.Node document while recording the
// formatting hints Marshal uses to reproduce the original layout. Empty
// input yields an empty mapping. The top level must be a mapping.
func Parse(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) == 0 {
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{newMapping()}
		storeMeta(&doc, data)
		return &doc, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(false)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("yamlupdate: %w: %w", ErrParse, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("yamlupdate: %w: top-level YAML must be a mapping", ErrParse)
	}
	storeMeta(&doc, data)
	return &doc, nil
}

func storeMeta(doc *yaml.Node, data []byte) {
	meta := docMeta{
		indent:        detectIndent(data),
		finalNewline:  len(data) == 0 || bytes.HasSuffix(data, []byte("\n")),
		indentless:    detectIndentlessSequences(data),
		commentSpaces: captureCommentSpacing(data),
		blockScalars:  captureBlockScalars(doc, data),
	}
	key := weak.Make(doc)
	metaMu.Lock()
	metaByDoc[key] = meta
	metaMu.Unlock()

	runtime.AddCleanup(doc, func(k weak.Pointer[yaml.Node]) {
		metaMu.Lock()
		delete(metaByDoc, k)
		metaMu.Unlock()
	}, key)
}

// Marshal encodes the document, restoring the indent, final newline,
// indentless sequences, comment spacing and untouched block scalars seen by
// Parse.
func Marshal(doc *yaml.Node) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("yamlupdate: nil document")
	}
	metaMu.RLock()
	meta, ok := metaByDoc[weak.Make(doc)]
	metaMu.RUnlock()
	if !ok {
		meta.finalNewline = true
	}
	if meta.indent == 0 {
		meta.indent = 2
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(meta.indent)
	err := enc.Encode(doc)
	enc.Close()
	if err != nil {
		return nil, fmt.Errorf("yamlupdate: encode: %w", err)
	}
	out := buf.Bytes()
	if !meta.finalNewline {
		out = bytes.TrimSuffix(out, []byte("\n"))
	}
	if len(meta.indentless) > 0 {
		out = restoreIndentlessSequences(out, meta.indent, meta.indentless)
	}
	if len(meta.commentSpaces) > 0 {
		out = applyCommentSpacing(out, meta.commentSpaces)
	}
	if blocks := liveBlockScalars(doc, meta.blockScalars); len(blocks) > 0 {
		out = applyBlockScalarText(out, blocks)
	}
	return out, nil
}

// captureBlockScalars records the original textual content of folded/literal block scalars
// so we can restore their exact line breaks on marshal.
func captureBlockScalars(doc *yaml.Node, data []byte) map[*yaml.Node]blockInfo {
	lines := bytes.Split(data, []byte("\n"))
	out := map[*yaml.Node]blockInfo{}
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n == nil {
			return
		}
		if n.Kind == yaml.ScalarNode && (n.Style == yaml.FoldedStyle || n.Style == yaml.LiteralStyle) {
			if info, ok := blockText(lines, n); ok {
				out[n] = info
			}
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func blockText(lines [][]byte, n *yaml.Node) (blockInfo, bool) {
	lineIdx := n.Line - 1
	if lineIdx < 0 || lineIdx+1 >= len(lines) {
		return blockInfo{}, false
	}
	contentIndent := leadingSpaces(lines[lineIdx+1])
	header := string(bytes.TrimRight(lines[lineIdx], "\r"))
	indent := leadingSpaces(lines[lineIdx])
	if contentIndent <= indent {
		return blockInfo{}, false
	}
	// gather subsequent lines until indentation shrinks; blank lines count
	// only when more content follows them
	var collected []string
	blanks := 0
	for i := lineIdx + 1; i < len(lines); i++ {
		l := lines[i]
		if len(bytes.TrimSpace(l)) == 0 {
			blanks++
			continue
		}
		if leadingSpaces(l) < contentIndent {
			break
		}
		for ; blanks > 0; blanks-- {
			collected = append(collected, "")
		}
		collected = append(collected, string(bytes.TrimRight(l[contentIndent:], "\r")))
	}
	if len(collected) == 0 {
		return blockInfo{}, false
	}
	var body strings.Builder
	pad := strings.Repeat(" ", contentIndent)
	for _, line := range collected {
		if line != "" {
			body.WriteString(pad)
			body.WriteString(line)
		}
		body.WriteString("\n")
	}
	return blockInfo{header: header, body: body.String(), indent: indent, value: n.Value}, true
}

// liveBlockScalars keeps the captured block scalars that are still part of
// doc with their original value.
func liveBlockScalars(doc *yaml.Node, blocks map[*yaml.Node]blockInfo) []blockInfo {
	if len(blocks) == 0 {
		return nil
	}
	var out []blockInfo
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n == nil {
			return
		}
		if info, ok := blocks[n]; ok && n.Value == info.value && (n.Style == yaml.FoldedStyle || n.Style == yaml.LiteralStyle) {
			out = append(out, info)
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func applyBlockScalarText(data []byte, blocks []blockInfo) []byte {
	out := data
	for _, info := range blocks {
		header := info.header
		idx := bytes.Index(out, []byte(header+"\n"))
		if idx == -1 {
			continue
		}
		start := idx + len(header) + 1
		end := start
		for pos := start; pos < len(out); {
			nl := bytes.IndexByte(out[pos:], '\n')
			next := pos + nl + 1
			if nl == -1 {
				nl = len(out) - pos
				next = len(out)
			}
			line := out[pos : pos+nl]
			if len(bytes.TrimSpace(line)) > 0 {
				if leadingSpaces(line) <= info.indent {
					break
				}
				end = next
			}
			pos = next
		}
		body := info.body
		if end == len(out) && !bytes.HasSuffix(out, []byte("\n")) {
			body = strings.TrimSuffix(body, "\n")
		}
		replacement := []byte(header + "\n" + body)
		merged := append([]byte{}, out[:idx]...)
		merged = append(merged, replacement...)
		merged = append(merged, out[end:]...)
		out = merged
	}
	return out
}

func detectIndentlessSequences(data []byte) []indentlessInfo {
	lines := bytes.Split(data, []byte("\n"))
	var out []indentlessInfo
	for i := 0; i+1 < len(lines); i++ {
		line := lines[i]
		next := lines[i+1]
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[len(trimmed)-1] != ':' {
			continue
		}
		key := strings.TrimSuffix(string(trimmed), ":")
		indent := leadingSpaces(line)
		if leadingSpaces(next) != indent {
			continue
		}
		if bytes.HasPrefix(bytes.TrimSpace(next), []byte{'-'}) {
			out = append(out, indentlessInfo{key: key, indent: indent})
		}
	}
	return out
}

func restoreIndentlessSequences(data []byte, indent int, infos []indentlessInfo) []byte {
	if indent <= 0 {
		return data
	}
	lines := bytes.Split(data, []byte("\n"))
	for i := 0; i < len(lines); i++ {
		lineIndent := leadingSpaces(lines[i])
		trimmed := strings.TrimSpace(string(lines[i]))
		for _, info := range infos {
			if lineIndent != info.indent || trimmed != info.key+":" {
				continue
			}
			for j := i + 1; j < len(lines); j++ {
				l := lines[j]
				if len(bytes.TrimSpace(l)) == 0 {
					continue
				}
				lIndent := leadingSpaces(l)
				if lIndent <= info.indent {
					break
				}
				if lIndent >= indent {
					lines[j] = dropIndent(l, indent)
				}
			}
			break
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

func captureCommentSpacing(data []byte) map[string]int {
	out := make(map[string]int)
	for _, l := range bytes.Split(data, []byte("\n")) {
		idx := bytes.IndexByte(l, '#')
		if idx <= 0 {
			continue
		}
		spaces := 0
		for j := idx - 1; j >= 0 && l[j] == ' '; j-- {
			spaces++
		}
		out[string(l[idx:])] = spaces
	}
	return out
}

func applyCommentSpacing(data []byte, spacing map[string]int) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, l := range lines {
		idx := bytes.IndexByte(l, '#')
		if idx <= 0 {
			continue
		}
		want, ok := spacing[string(l[idx:])]
		if !ok || want == 0 {
			continue
		}
		spaces := 0
		for j := idx - 1; j >= 0 && l[j] == ' '; j-- {
			spaces++
		}
		if spaces == want || spaces == 0 {
			continue
		}
		nl := append([]byte(nil), l[:idx-spaces]...)
		nl = append(nl, bytes.Repeat([]byte(" "), want)...)
		nl = append(nl, l[idx:]...)
		lines[i] = nl
	}
	return bytes.Join(lines, []byte("\n"))
}

func dropIndent(line []byte, count int) []byte {
	idx := 0
	for idx < len(line) && idx < count && line[idx] == ' ' {
		idx++
	}
	return append([]byte(nil), line[idx:]...)
}

// detectIndent returns the minimal positive indentation observed in the data.
func detectIndent(data []byte) int {
	indent := 0
	for _, l := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(l)) == 0 {
			continue
		}
		c := leadingSpaces(l)
		if c == 0 {
			continue
		}
		if indent == 0 || c < indent {
			indent = c
		}
	}
	if indent == 0 {
		indent = 2
	}
	return indent
}

// leadingSpaces counts leading space characters.
func leadingSpaces(line []byte) int {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}
