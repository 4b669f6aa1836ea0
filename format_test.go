package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"KEY", "VALUE"}
	rows := [][]string{
		{"app.name", "remoteconfig"},
		{"app.version", "1"},
	}

	printTable(&buf, headers, rows)
	output := buf.String()

	assert.Contains(t, output, "KEY")
	assert.Contains(t, output, "VALUE")
	assert.Contains(t, output, "app.name")
	assert.Contains(t, output, "remoteconfig")
}
