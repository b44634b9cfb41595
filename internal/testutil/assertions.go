// Package testutil holds fixtures shared by the runtime's tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entry is one file of a fixture archive.
type Entry struct {
	Name string
	Data string
}

// ZipArchive builds an in-memory zip holding entries in order.
func ZipArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.Data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Chunks splits data into pieces of at most size bytes.
func Chunks(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// AssertJSONEqual compares two JSON documents ignoring formatting.
func AssertJSONEqual(t testing.TB, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var want, got any
	require.NoError(t, json.Unmarshal([]byte(expected), &want), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &got), "actual JSON is invalid")
	assert.Equal(t, want, got, msgAndArgs...)
}
