package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintSettingsTable_SortsKeys(t *testing.T) {
	var buf bytes.Buffer

	printSettingsTable(&buf, map[string]string{"b.key": "2", "a.key": "1"})

	output := buf.String()
	assert.Less(t, strings.Index(output, "a.key"), strings.Index(output, "b.key"))
}
