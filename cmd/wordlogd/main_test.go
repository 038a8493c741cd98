package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordlog/internal/logging"
)

// isolate points every default path into a temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WORDLOG_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("HOME", dir)
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunScriptFromStdin(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "word.log")

	script := strings.Join([]string{
		"# greet",
		"line hello",
		"up LShift",
		"tap Key1",
		"up RShift",
		"tap A",
		"tap Enter",
		"type unfinished",
	}, "\n")

	code, _, stderr := runCLI(t, script, "run", "-out", out)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":\"hello\"}\n{\"line\":\"!a\"}\n", string(data))
	assert.Contains(t, stderr, "script finished")
	assert.NotContains(t, stderr, "unfinished")

	code, stdout, _ := runCLI(t, "", "check", out)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "2 valid lines")

	code, stdout, _ = runCLI(t, "", "show", out)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n!a\n", stdout)

	code, stdout, _ = runCLI(t, "", "show", "-json", out)
	assert.Equal(t, 0, code)
	assert.Equal(t, string(data), stdout)
}

func TestRunAppendsAcrossRuns(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "word.log")

	for _, word := range []string{"one", "two"} {
		code, _, stderr := runCLI(t, "line "+word+"\n", "run", "-out", out)
		require.Equal(t, 0, code, stderr)
	}

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":\"one\"}\n{\"line\":\"two\"}\n", string(data))
}

func TestRunBadScript(t *testing.T) {
	dir := isolate(t)

	code, _, stderr := runCLI(t, "tap A\nwiggle B\n", "run", "-out", filepath.Join(dir, "word.log"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "script line 2")
}

func TestRunWithIndexAndSearch(t *testing.T) {
	dir := isolate(t)
	index := filepath.Join(dir, "index.db")
	t.Setenv("WORDLOG_INDEX_PATH", index)

	code, _, stderr := runCLI(t, "line hello world\nline goodbye\nline world peace\n",
		"run", "-out", filepath.Join(dir, "word.log"))
	require.Equal(t, 0, code, stderr)

	code, stdout, _ := runCLI(t, "", "search", "world")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "hello world")
	assert.Contains(t, stdout, "world peace")
	assert.NotContains(t, stdout, "goodbye")
	assert.Contains(t, stdout, "2 matching lines")

	code, stdout, _ = runCLI(t, "", "search", "-index", index, "-limit", "1", "world")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "world peace")
	assert.Contains(t, stdout, "1 matching lines")
}

func TestRunWithConfigFile(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "from-config.log")
	cfgPath := filepath.Join(dir, "wordlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  path: "+out+"\nlogging:\n  level: debug\n"), 0600))

	code, _, stderr := runCLI(t, "line cfg\n", "run", "-config", cfgPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "line committed")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":\"cfg\"}\n", string(data))
}

func TestRunInvalidConfig(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0600))

	code, _, stderr := runCLI(t, "", "run", "-config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "logging.level")
}

func TestCheckReportsBadLine(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "word.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"line\":\"ok\"}\n{\"line\":1}\n"), 0600))

	code, _, stderr := runCLI(t, "", "check", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "line 2")
}

func TestCheckUsage(t *testing.T) {
	isolate(t)
	code, stdout, _ := runCLI(t, "", "check")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Usage: wordlogd check <log>")
}

func TestConfigCommand(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "", "config")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "[output]")
	assert.Contains(t, stdout, "word.log")

	code, stdout, _ = runCLI(t, "", "config", "-format", "json")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"output"`)
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "wordlog.yaml")

	code, stdout, stderr := runCLI(t, "", "config", "-config", path, "-init")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "# created: "+path)
	require.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "output:")

	code, stdout, _ = runCLI(t, "", "config", "-config", path, "-init")
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "# created:")
}

func TestCrashesCommand(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "", "crashes")
	require.Equal(t, 0, code)
	assert.Equal(t, "No crash reports\n", stdout)

	logging.NewCrashHandler(crashDir(), "1.2.3", "wordlogd").HandlePanic("boom")

	code, stdout, _ = runCLI(t, "", "crashes")
	require.Equal(t, 0, code)
	assert.Regexp(t, `wordlogd\s+1\.2\.3\s+boom`, stdout)
	assert.Contains(t, stdout, "1 reports in "+crashDir())
}

func TestKeysCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "keys")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "KEY")
	assert.Regexp(t, `Key1\s+character\s+"1"\s+"!"`, stdout)
	assert.Regexp(t, `Enter\s+return\s+-\s+-`, stdout)
}

func TestVersionHelpAndUnknown(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "wordlogd dev\n", stdout)

	code, stdout, _ = runCLI(t, "", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "COMMANDS:")

	code, _, stderr := runCLI(t, "", "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")

	code, _, _ = runCLI(t, "")
	assert.Equal(t, 1, code)
}
