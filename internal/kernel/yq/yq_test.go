package yq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `name: app
replicas: 3
ports:
  - 80
  - 443
labels:
  tier: web
`

func TestDecodeShapes(t *testing.T) {
	doc, err := Decode(sample)
	require.NoError(t, err)
	obj := doc.(map[string]any)
	assert.Equal(t, "app", obj["name"])
	assert.Equal(t, float64(3), obj["replicas"])
	assert.Equal(t, []any{float64(80), float64(443)}, obj["ports"])
	assert.Equal(t, "web", obj["labels"].(map[string]any)["tier"])
}

func TestQueryThroughJqModel(t *testing.T) {
	doc, err := Decode(sample)
	require.NoError(t, err)
	out, err := Query(doc, ".labels.tier", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"web"}, out)
	out, err = Query(doc, ".ports | length", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(2)}, out)
}

func TestAssign(t *testing.T) {
	doc, err := Decode(sample)
	require.NoError(t, err)
	updated, err := Assign(doc, ".replicas", ParseValue("5"))
	require.NoError(t, err)
	assert.Equal(t, float64(5), updated.(map[string]any)["replicas"])

	updated, err = Assign(updated, ".labels.env", ParseValue(`"prod"`))
	require.NoError(t, err)
	assert.Equal(t, "prod", updated.(map[string]any)["labels"].(map[string]any)["env"])

	updated, err = Assign(updated, ".ports[0]", ParseValue("8080"))
	require.NoError(t, err)
	assert.Equal(t, float64(8080), updated.(map[string]any)["ports"].([]any)[0])
}

func TestDelete(t *testing.T) {
	doc, err := Decode(sample)
	require.NoError(t, err)
	updated, err := Delete(doc, ".labels.tier")
	require.NoError(t, err)
	labels := updated.(map[string]any)["labels"].(map[string]any)
	_, present := labels["tier"]
	assert.False(t, present)
}

func TestParseValueForms(t *testing.T) {
	assert.Equal(t, nil, ParseValue("null"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, float64(3), ParseValue("3"))
	assert.Equal(t, "text", ParseValue(`"text"`))
	assert.Equal(t, "bare", ParseValue("bare"))
	assert.Equal(t, []any{float64(1), float64(2)}, ParseValue("[1,2]"))
}

func TestYAMLRoundTrip(t *testing.T) {
	doc, err := Decode(sample)
	require.NoError(t, err)
	encoded, err := Encode(doc, "yaml")
	require.NoError(t, err)
	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestEncodeJSON(t *testing.T) {
	doc, _ := Decode("a: 1\n")
	out, err := Encode(doc, "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"a": 1`)
}

func TestEncodeProps(t *testing.T) {
	doc, _ := Decode(sample)
	out, err := Encode(doc, "props")
	require.NoError(t, err)
	assert.Contains(t, out, "labels.tier = web")
	assert.Contains(t, out, "ports.0 = 80")
}

func TestEncodeCSV(t *testing.T) {
	doc, err := Decode("- name: a\n  n: 1\n- name: b\n  n: 2\n")
	require.NoError(t, err)
	out, err := Encode(doc, "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "n,name", lines[0])
	assert.Equal(t, "1,a", lines[1])
}

func TestAnchorsAndAliases(t *testing.T) {
	doc, err := Decode("base: &b\n  x: 1\nother: *b\n")
	require.NoError(t, err)
	other := doc.(map[string]any)["other"].(map[string]any)
	assert.Equal(t, float64(1), other["x"])
}

func TestEncodeUnknownFormat(t *testing.T) {
	_, err := Encode(map[string]any{}, "toml")
	assert.Error(t, err)
}
