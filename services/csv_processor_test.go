package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"producttree/models"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffIssue key,Issue Type,Summary\n" +
		"PROJ-1,Epic,\"Launch, phase 1\"\n" +
		" , ,\n" +
		"PROJ-2,Story\n" +
		"PROJ-3,Task,Extra,Cell\n"

	rows, err := NewCSVProcessor().ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []models.RawRecord{
		{"Issue key": "PROJ-1", "Issue Type": "Epic", "Summary": "Launch, phase 1"},
		{"Issue key": "PROJ-2", "Issue Type": "Story"},
		{"Issue key": "PROJ-3", "Issue Type": "Task", "Summary": "Extra"},
	}, rows)
}

func TestReadCSV_LazyQuotes(t *testing.T) {
	rows, err := NewCSVProcessor().ReadCSV(strings.NewReader("Summary\nsay \"hi\" now\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `say "hi" now`, rows[0]["Summary"])
}

func TestReadCSV_NoRecords(t *testing.T) {
	p := NewCSVProcessor()

	_, err := p.ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = p.ReadCSV(strings.NewReader("Issue key,Summary\n"))
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = p.ReadCSV(strings.NewReader("Issue key,Summary\n,\n"))
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.csv")
	require.NoError(t, os.WriteFile(path, []byte("Issue key\nA-1\n"), 0o644))

	rows, err := NewCSVProcessor().ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.RawRecord{{"Issue key": "A-1"}}, rows)

	_, err = NewCSVProcessor().ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecords)
}
