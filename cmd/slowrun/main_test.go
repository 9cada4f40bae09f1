package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	base := []string{"--data-dir", dataDir, "--env-file", filepath.Join(dataDir, "missing.env")}
	root.SetArgs(append(args, base...))
	err := root.Execute()
	return out.String(), err
}

func TestRenderTable_AlignsWideHeaders(t *testing.T) {
	var out bytes.Buffer
	err := renderTable(&out, []string{"日期", "步数"}, [][]string{{"2026-04-12", "900"}}, false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "日期        步数", lines[0])
	assert.Equal(t, "2026-04-12  900", lines[2])
	assert.Equal(t, strings.Repeat("-", 16), lines[1])
}

func TestSettingsSetAndShow(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "settings", "set", "weight=80", "height=180")
	require.NoError(t, err)

	out, err := execute(t, dir, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "weight")
	assert.Contains(t, out, "80")
	assert.NotContains(t, out, "(defaults)")

	_, err = execute(t, dir, "settings", "set", "weight=-1")
	assert.Error(t, err)

	_, err = execute(t, dir, "settings", "reset")
	require.NoError(t, err)
	out, err = execute(t, dir, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "(defaults)")
}

func TestCheckinAndShow(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "checkin", "--minutes", "25", "--feeling", "tired", "--date", "2026-04-10", "--notes", "windy")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked in 2026-04-10: 25 min, tired")

	out, err = execute(t, dir, "checkin", "show", "--month", "2026-04")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-04-10")
	assert.Contains(t, out, "windy")

	_, err = execute(t, dir, "checkin", "--minutes", "10", "--feeling", "sleepy")
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "export.json")

	_, err := execute(t, dir, "export", "--format", "json", "--out", exportPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"records"`)

	out, err := execute(t, dir, "import", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 sessions.")

	_, err = execute(t, dir, "export", "--format", "xml")
	assert.Error(t, err)
}

func TestStatsEmpty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions")
	assert.Contains(t, out, "No sessions yet.")
}

func TestCalories(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "calories", "--minutes", "30")
	assert.Error(t, err, "the default profile has no height")

	out, err := execute(t, dir, "calories", "--minutes", "60", "--height", "175", "--intensity", "moderate")
	require.NoError(t, err)
	assert.Contains(t, out, "60 min")
	assert.Contains(t, out, "4.50")
}

func TestCaloriesHistory(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "calories", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved estimates.")

	_, err = execute(t, dir, "calories", "--minutes", "30", "--height", "175")
	require.NoError(t, err)
	_, err = execute(t, dir, "calories", "--minutes", "45", "--height", "175")
	require.NoError(t, err)

	out, err = execute(t, dir, "calories", "history")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Per minute")
	// Date and time take the first two columns
	assert.Equal(t, "45", strings.Fields(lines[2])[2])
	assert.Equal(t, "30", strings.Fields(lines[3])[2])

	out, err = execute(t, dir, "calories", "history", "--records", "1")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "45", strings.Fields(lines[2])[2])
}

func TestPlanApply(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "plan", "--experience", "advanced", "--weight", "70", "--height", "175")
	require.NoError(t, err)
	assert.Contains(t, out, "45-60 min")
	assert.Contains(t, out, "22.9 (normal)")
	assert.Contains(t, out, "long-run")
	assert.NotContains(t, out, "Metronome set to")

	out, err = execute(t, dir, "plan", "--experience", "intermediate", "--intensity", "5", "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "Metronome set to 180 BPM, workout length 42 min.")

	_, err = execute(t, dir, "plan", "--experience", "expert")
	assert.Error(t, err)
	_, err = execute(t, dir, "plan", "--time", "daily")
	assert.Error(t, err)
}
