package ingestlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLog_RecordsOneJSONLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestion.log.jsonl")
	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.Success("lei-8666.xml", 12))
	require.NoError(t, l.Failure("ica-100-12.pdf", assertErr{"bad pdf"}))
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "ok", first.Status)
	require.Equal(t, 12, first.ChunkCount)

	var second Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "error", second.Status)
	require.Equal(t, "bad pdf", second.Error)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestOpen_ReplaysExistingLogForIsProcessed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestion.log.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Success("lei-8666.xml", 12))
	require.NoError(t, l.Failure("ica-100-12.pdf", assertErr{"bad pdf"}))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.True(t, reopened.IsProcessed("lei-8666.xml"))
	require.False(t, reopened.IsProcessed("ica-100-12.pdf"))
	require.False(t, reopened.IsProcessed("never-seen.xml"))
}

func TestOpen_LaterSuccessOverridesEarlierFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestion.log.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Failure("ica-100-12.pdf", assertErr{"bad pdf"}))
	require.NoError(t, l.Success("ica-100-12.pdf", 7))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.True(t, reopened.IsProcessed("ica-100-12.pdf"))
}
