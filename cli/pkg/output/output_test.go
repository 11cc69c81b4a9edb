package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	SetOutput(&stdout, &stderr)
	t.Cleanup(func() {
		color.NoColor = prev
		SetOutput(nil, nil)
	})
	return &stdout, &stderr
}

func TestSuccess(t *testing.T) {
	stdout, _ := capture(t)
	Success("Created %d items in %s", 5, "database")

	assert.Equal(t, "✓ Created 5 items in database\n", stdout.String())
}

func TestError(t *testing.T) {
	stdout, stderr := capture(t)
	Error("Failed to connect to %s on port %d", "server", 8080)

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "✗ Failed to connect to server on port 8080")
}

func TestInfoAndWarn(t *testing.T) {
	stdout, _ := capture(t)
	Info("Processing %d of %d files", 5, 10)
	Warn("Disk usage is %d%%", 95)

	assert.Contains(t, stdout.String(), "Processing 5 of 10 files")
	assert.Contains(t, stdout.String(), "⚠ Disk usage is 95%")
}

func TestJSON(t *testing.T) {
	stdout, _ := capture(t)
	require.NoError(t, JSON(map[string]interface{}{"user": map[string]interface{}{"name": "alice"}}))

	assert.Contains(t, stdout.String(), "  \"user\":")
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &parsed))
}

func TestYAML(t *testing.T) {
	stdout, _ := capture(t)
	require.NoError(t, YAML(map[string]int{"accepted": 3}))

	var parsed map[string]int
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &parsed))
	assert.Equal(t, 3, parsed["accepted"])
}

func TestPrint(t *testing.T) {
	v := map[string]int{"deduped": 1}

	t.Run("json", func(t *testing.T) {
		stdout, _ := capture(t)
		require.NoError(t, Print("json", v, func() { t.Fatal("table should not render") }))
		assert.Contains(t, stdout.String(), `"deduped": 1`)
	})

	t.Run("yaml", func(t *testing.T) {
		stdout, _ := capture(t)
		require.NoError(t, Print("YAML", v, func() { t.Fatal("table should not render") }))
		assert.Contains(t, stdout.String(), "deduped: 1")
	})

	t.Run("table", func(t *testing.T) {
		capture(t)
		called := false
		require.NoError(t, Print("table", v, func() { called = true }))
		assert.True(t, called)
	})

	t.Run("unknown", func(t *testing.T) {
		capture(t)
		assert.Error(t, Print("xml", v, func() {}))
	})
}

func TestTable_Render(t *testing.T) {
	stdout, _ := capture(t)

	table := NewTable([]string{"LINE", "DEFECTS"})
	table.AddRow([]string{"L-long-name", "4"})
	table.AddRow([]string{"L-2", "12"})
	table.Render()

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "LINE         DEFECTS"))
	assert.True(t, strings.HasPrefix(lines[1], "-----------  -------"))
	assert.True(t, strings.HasPrefix(lines[2], "L-long-name  4"))
	assert.True(t, strings.HasPrefix(lines[3], "L-2          12"))
}

func TestTable_Empty(t *testing.T) {
	stdout, _ := capture(t)
	NewTable([]string{"A"}).Render()

	assert.Equal(t, 2, strings.Count(stdout.String(), "\n"))
}
