package yamlupdate

import (
	"errors"
	"strings"
	"testing"

	gyaml "github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

func mustParse(t *testing.T, in string) *yaml.Node {
	t.Helper()
	doc, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return doc
}

func render(t *testing.T, doc *yaml.Node) string {
	t.Helper()
	out, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	return string(out)
}

func setOp(t *testing.T, path string, value any, added bool) Operation {
	t.Helper()
	op, err := SetOp(path, value, added)
	require.NoError(t, err)
	return op
}

func removeOp(t *testing.T, path string) Operation {
	t.Helper()
	op, err := RemoveOp(path)
	require.NoError(t, err)
	return op
}

func getValue(t *testing.T, doc *yaml.Node, path string) any {
	t.Helper()
	n, err := Get(doc, path)
	require.NoError(t, err, "get %s", path)
	return plainValue(n)
}

func getLineContaining(s, substr string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, substr) {
			return line
		}
	}
	return ""
}

func TestUpdateAddedBuildsNestedMappingsInEmptyDocument(t *testing.T) {
	doc := mustParse(t, "")
	changed, err := Update(doc, setOp(t, "a.b.c", "value", true))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "a:\n  b:\n    c: value\n", render(t, doc))
}

func TestUpdateSetIsIdempotent(t *testing.T) {
	doc := mustParse(t, "a:\n  b: 1\n")
	op := setOp(t, "a.b", 3, false)

	changed, err := Update(doc, op)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Update(doc, op)
	require.NoError(t, err)
	assert.False(t, changed, "second identical set must not report a change")
	assert.Equal(t, "a:\n  b: 3\n", render(t, doc))
}

func TestUpdateSetEqualValueWithDifferentSpellingIsNoChange(t *testing.T) {
	doc := mustParse(t, "a: 1.0\nb: ~\nc: 'x'\n")
	for path, v := range map[string]any{"a": 1, "b": nil, "c": "x"} {
		changed, err := Update(doc, setOp(t, path, v, false))
		require.NoError(t, err)
		assert.False(t, changed, path)
	}
}

func TestUpdateRemoveIsIdempotent(t *testing.T) {
	doc := mustParse(t, "a:\n  b: 1\n  c: 2\n")
	op := removeOp(t, "a.b")

	changed, err := Update(doc, op)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Update(doc, op)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "a:\n  c: 2\n", render(t, doc))
}

func TestUpdateRemoveAbsentPathsNeverFail(t *testing.T) {
	doc := mustParse(t, "a: 1\nlist:\n  - x: 1\n")
	for _, path := range []string{"missing", "missing.deeper", "a.b", "a[0]", "list[4]", "list[0].y", "list[3].x"} {
		changed, err := Update(doc, removeOp(t, path))
		require.NoError(t, err, path)
		assert.False(t, changed, path)
	}
	assert.Equal(t, 1, getValue(t, doc, "a"))
	assert.Len(t, getValue(t, doc, "list"), 1)
}

func TestUpdateRemoveDropsDuplicateKeys(t *testing.T) {
	doc := mustParse(t, "a: 1\nb: 2\na: 3\n")
	changed, err := Update(doc, removeOp(t, "a"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "b: 2\n", render(t, doc))
}

func TestUpdateRemoveSequenceElement(t *testing.T) {
	doc := mustParse(t, "list:\n  - a\n  - b\n  - c\n")
	changed, err := Update(doc, removeOp(t, "list[-2]"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []any{"a", "c"}, getValue(t, doc, "list"))
}

func TestUpdateStrictMissingIntermediateFails(t *testing.T) {
	doc := mustParse(t, "a: 1\n")
	before := render(t, doc)

	changed, err := Update(doc, setOp(t, "a.b", 2, false))
	require.Error(t, err)
	assert.False(t, changed)
	assert.True(t, errors.Is(err, ErrPathNotFound), "got %v", err)

	var pe *PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "a.b", pe.Path)
	assert.Equal(t, before, render(t, doc))
}

func TestUpdateStrictMissingLeafFails(t *testing.T) {
	doc := mustParse(t, "a:\n  b: 1\n")
	_, err := Update(doc, setOp(t, "a.c", 2, false))
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Contains(t, err.Error(), `"a.c"`)
}

func TestUpdateStrictIndexOutOfRange(t *testing.T) {
	doc := mustParse(t, "list:\n  - 1\n")
	_, err := Update(doc, setOp(t, "list[3]", 2, false))
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "list[3]", pe.Path)
}

func TestUpdateIndexedKeyThatIsNotASequence(t *testing.T) {
	doc := mustParse(t, "a:\n  x: 1\n")
	_, err := Update(doc, setOp(t, "a[0]", 2, false))
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Update(doc, setOp(t, "a[0]", 2, true))
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestUpdateNegativeIndex(t *testing.T) {
	doc := mustParse(t, "user_list:\n  - name: a\n    age: 1\n  - name: b\n    age: 2\n")
	changed, err := Update(doc, setOp(t, "user_list[-1].age", 20, false))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 20, getValue(t, doc, "user_list[1].age"))
	assert.Equal(t, 1, getValue(t, doc, "user_list[0].age"))
}

func TestUpdateAddedAppendsOneElementToShortSequence(t *testing.T) {
	doc := mustParse(t, "list:\n  - name: a\n")
	changed, err := Update(doc, setOp(t, "list[1].name", "b", true))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []any{
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
	}, getValue(t, doc, "list"))
}

func TestUpdateAddedFarIndexAppendsOnceThenFails(t *testing.T) {
	doc := mustParse(t, "list:\n  - name: a\n")
	_, err := Update(doc, setOp(t, "list[5].name", "b", true))
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	// The one scaffolding element appended before the failure stays.
	list, err := Get(doc, "list")
	require.NoError(t, err)
	assert.Len(t, list.Content, 2)
}

func TestUpdateAddedNegativeIndexOutOfRangeAppendsNothing(t *testing.T) {
	in := "l:\n  - a: 1\n  - a: 2\n"
	doc := mustParse(t, in)
	changed, err := Update(doc, setOp(t, "l[-3].a", 9, true))
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.False(t, changed)
	assert.Equal(t, in, render(t, doc))
}

func TestUpdateFollowsAliases(t *testing.T) {
	doc := mustParse(t, "base: &b\n  x: 1\nother: *b\nlists: &l\n  - 1\nmore: *l\n")

	assert.Equal(t, 1, getValue(t, doc, "other.x"))
	assert.Equal(t, 1, getValue(t, doc, "more[0]"))

	changed, err := Update(doc, setOp(t, "other.x", 5, false))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 5, getValue(t, doc, "base.x"), "aliases share the anchored node")

	changed, err = Update(doc, setOp(t, "more[0]", 2, false))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []any{2}, getValue(t, doc, "lists"))

	changed, err = Update(doc, removeOp(t, "other.x"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]any{}, getValue(t, doc, "base"))
}

func TestUpdateAddedCreatesSequenceForIndexedKey(t *testing.T) {
	doc := mustParse(t, "")
	changed, err := Update(doc, setOp(t, "items[0].name", "x", true))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []any{map[string]any{"name": "x"}}, getValue(t, doc, "items"))
}

func TestUpdateAddedPromotesNull(t *testing.T) {
	doc := mustParse(t, "a: null\nb:\n")
	_, err := Update(doc, setOp(t, "a.x", 1, true))
	require.NoError(t, err)
	_, err = Update(doc, setOp(t, "b[0].y", 2, true))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"x": 1}, getValue(t, doc, "a"))
	assert.Equal(t, []any{map[string]any{"y": 2}}, getValue(t, doc, "b"))
}

func TestUpdateAddedDoesNotReplaceScalarIntermediate(t *testing.T) {
	doc := mustParse(t, "a: 1\n")
	_, err := Update(doc, setOp(t, "a.b", 2, true))
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Equal(t, 1, getValue(t, doc, "a"))
}

func TestUpdateScaffoldingAloneReportsChange(t *testing.T) {
	doc := mustParse(t, "a: 1\n")
	changed, err := Update(doc, setOp(t, "x.y", map[string]any{}, true))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]any{"y": map[string]any{}}, getValue(t, doc, "x"))
}

func TestUpdateKeepsQuoteStyleAndComments(t *testing.T) {
	doc := mustParse(t, `svc:
  image: "nginx:1.0" # pinned
  port: 8080
`)
	changed, err := Update(doc, setOp(t, "svc.image", "nginx:latest", false))
	require.NoError(t, err)
	assert.True(t, changed)

	out := render(t, doc)
	assert.Equal(t, `  image: "nginx:latest" # pinned`, getLineContaining(out, "image:"))
	assert.Equal(t, "  port: 8080", getLineContaining(out, "port:"))
}

func TestUpdateSetsStructuredValues(t *testing.T) {
	doc := mustParse(t, "metadata:\n  name: web\n")
	labels := gyaml.MapSlice{{Key: "tier", Value: "frontend"}, {Key: "app", Value: "web"}}
	_, err := Update(doc, setOp(t, "metadata.labels", labels, true))
	require.NoError(t, err)

	assert.Equal(t, "metadata:\n  name: web\n  labels:\n    tier: frontend\n    app: web\n", render(t, doc))
}

func TestUpdateRejectsNonMappingDocument(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("- 1\n"), &doc))
	_, err := Update(&doc, setOp(t, "a", 1, true))
	assert.Error(t, err)
}

func TestApplyStopsAtFirstError(t *testing.T) {
	doc := mustParse(t, "a: 1\nb: 2\n")
	b := Batch{Updates: []Operation{
		setOp(t, "a", 10, false),
		setOp(t, "missing.key", 1, false),
		setOp(t, "b", 20, false),
	}}
	changed, err := Apply(doc, b)
	require.ErrorIs(t, err, ErrPathNotFound)
	assert.False(t, changed)
	assert.Equal(t, 2, getValue(t, doc, "b"), "operations after the failure must not run")
}

func TestApplyRunsUpdatesThenMerge(t *testing.T) {
	doc := mustParse(t, "a: 1\n")
	b := Batch{
		Updates: []Operation{setOp(t, "a", 2, false)},
		Merge:   &MergeRequest{Source: mustValues(t, "a: 3\nb: 4\n"), AllowAdd: true},
	}
	changed, err := Apply(doc, b)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "a: 3\nb: 4\n", render(t, doc))
}

func TestEditorLogsOperations(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := NewEditor(WithLogger(zap.New(core)))

	doc := mustParse(t, "a: 1\n")
	_, err := e.Update(doc, setOp(t, "a", 2, false))
	require.NoError(t, err)
	_, err = e.Update(doc, removeOp(t, "nope"))
	require.NoError(t, err)

	applied := logs.FilterMessage("applied update").All()
	require.Len(t, applied, 1)
	assert.Equal(t, "a", applied[0].ContextMap()["path"])
	assert.Equal(t, true, applied[0].ContextMap()["changed"])
	assert.Equal(t, 1, logs.FilterMessage("path absent, nothing to remove").Len())
}

func TestPodManifestUpdates(t *testing.T) {
	doc := mustParse(t, `apiVersion: v1
kind: Pod
metadata:
  name: web
  labels:
    app: web
spec:
  containers:
    - name: web
      image: nginx:1.14
      ports:
        - containerPort: 80
`)
	b := Batch{Updates: []Operation{
		setOp(t, "spec.containers[0].image", "nginx:latest", false),
		setOp(t, "spec.containers[0].ports[0].containerPort", 8080, false),
		setOp(t, "metadata.labels.tier", "frontend", true),
		removeOp(t, "metadata.labels.app"),
	}}
	changed, err := Apply(doc, b)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "nginx:latest", getValue(t, doc, "spec.containers[0].image"))
	assert.Equal(t, 8080, getValue(t, doc, "spec.containers[0].ports[0].containerPort"))
	assert.Equal(t, map[string]any{"tier": "frontend"}, getValue(t, doc, "metadata.labels"))

	changed, err = Apply(doc, b)
	require.NoError(t, err)
	assert.False(t, changed, "re-applying the batch must be a no-op")
}
