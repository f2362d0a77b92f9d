package errlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordWritesOneLinePerMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf)

	log.Recordf("Student ID %d not found.", 7)
	log.Record("Error processing file", map[string]interface{}{"filename": "essay.txt"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Student ID 7 not found.")
	require.Contains(t, lines[1], "Error processing file")
	require.Contains(t, lines[1], "filename=essay.txt")
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "error_logs.txt")

	first, err := Open(path)
	require.NoError(t, err)
	first.Recordf("first")
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	second.Recordf("second")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "first")
	require.Contains(t, string(data), "second")
}

func TestConcurrentRecordsDoNotInterleave(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Recordf("grading failed for upload")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		require.Contains(t, line, "grading failed for upload")
	}
}

func TestNilAndNopAreSafe(t *testing.T) {
	var log *Log
	log.Recordf("ignored")
	Nop().Record("ignored", nil)
}
