package core

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, sonic.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestSessionLogWriter_HeaderLinesFooter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSessionLogWriter(dir, "sess-1", "watch/01")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "watch_01", "sess-1.jsonl"), w.Path())

	logger := NewSessionLogger(NewNopLogger(), w).With(map[string]any{"component": "sentence"})
	logger.Info("word added", "word", "HELLO")
	logger.With(map[string]any{"error": errors.New("timeout")}).Warn("enhancer failed")
	w.Close()
	w.Write("INFO", "ignored after close", nil)

	lines := readLines(t, w.Path())
	require.Len(t, lines, 4)
	assert.Equal(t, "sess-1", lines[0]["session_id"])
	assert.Equal(t, "watch/01", lines[0]["device_id"])
	assert.Equal(t, "word added", lines[1]["msg"])
	assert.Equal(t, "HELLO", lines[1]["attrs"].(map[string]any)["word"])
	assert.Equal(t, "timeout", lines[2]["attrs"].(map[string]any)["error"])
	assert.EqualValues(t, 2, lines[3]["lines"])
}

func TestLevelRank(t *testing.T) {
	assert.Less(t, LevelRank("DEBUG"), LevelRank("info"))
	assert.Less(t, LevelRank("INFO"), LevelRank("WARN"))
	assert.Equal(t, LevelRank("info"), LevelRank("nonsense"))
}
