package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFieldMapping_CoversEveryField(t *testing.T) {
	m := DefaultFieldMapping()
	require.Len(t, m, len(Fields))
	for _, f := range Fields {
		assert.NotEmpty(t, m[f], "field %s has no column", f)
	}
}

func TestFieldMapping_ColumnFallsBackToDefault(t *testing.T) {
	m := FieldMapping{FieldKey: "Key"}
	assert.Equal(t, "Key", m.Column(FieldKey))
	assert.Equal(t, "Summary", m.Column(FieldSummary))
}

func TestParseKeyValueText(t *testing.T) {
	text := `
# comment line
To Do = not_started
In Progress=in_progress
no separator here
Formula = a=b=c
  Done   =   done
`
	got := ParseKeyValueText(text)
	assert.Equal(t, map[string]string{
		"To Do":       "not_started",
		"In Progress": "in_progress",
		"Formula":     "a=b=c",
		"Done":        "done",
	}, got)
}

func TestParseKeyValueText_Empty(t *testing.T) {
	assert.Empty(t, ParseKeyValueText(""))
}

func TestFormatKeyValueText_RoundTrip(t *testing.T) {
	in := DefaultTypeMap()
	text := FormatKeyValueText(in)
	assert.Equal(t, in, ParseKeyValueText(text))
	assert.Contains(t, text, "Epic = goal")
}

func TestParseDefaults(t *testing.T) {
	got := ParseDefaults(DefaultProductDefaults)
	assert.Equal(t, map[string]string{
		"status":   "active",
		"priority": "P0",
		"team":     "",
	}, got)

	got = ParseDefaults("status=a=b;bogus; team = Core ")
	assert.Equal(t, "a=b", got["status"])
	assert.Equal(t, "Core", got["team"])
	_, ok := got["bogus"]
	assert.False(t, ok)
}

func TestParseProfile_MergesColumnsAndReplacesMaps(t *testing.T) {
	data := []byte(`
columns:
  key: Key
  epic_link: Custom field (Epic Link)
status_map:
  Open: not_started
`)
	p, err := ParseProfile(data)
	require.NoError(t, err)

	assert.Equal(t, "Key", p.Columns[FieldKey])
	assert.Equal(t, "Custom field (Epic Link)", p.Columns[FieldEpicLink])
	assert.Equal(t, "Summary", p.Columns[FieldSummary])
	assert.Equal(t, map[string]string{"Open": "not_started"}, p.StatusMap)
	assert.Equal(t, DefaultTypeMap(), p.TypeMap)
	assert.Equal(t, DefaultProductDefaults, p.Defaults)
}

func TestParseProfile_UnknownField(t *testing.T) {
	_, err := ParseProfile([]byte("columns:\n  bogus: X\n"))
	require.Error(t, err)
}

func TestParseProfile_InvalidYAML(t *testing.T) {
	_, err := ParseProfile([]byte("columns: [unterminated"))
	require.Error(t, err)
}

func TestLoadProfile_MarshalRoundTrip(t *testing.T) {
	data, err := DefaultProfile().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
