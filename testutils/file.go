// Package testutils contains helpers shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

// WriteTempFile writes contents to name inside a fresh temporary directory and fails the test if
// it cannot. It returns the file's path.
func WriteTempFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, contents, 0o600), test.ShouldBeNil)
	return path
}

// WriteNMEALog writes sentences to a log file, one per CRLF terminated line, the way receivers
// emit them.
func WriteNMEALog(t *testing.T, sentences ...string) string {
	t.Helper()
	return WriteTempFile(t, "receiver.nmea", []byte(strings.Join(sentences, "\r\n")+"\r\n"))
}
