package iocli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdio_PrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	io := New(strings.NewReader(""), &out)

	io.Println("hello")
	io.Printf("%d items\n", 3)

	assert.Equal(t, "hello\n3 items\n", out.String())
}

func TestStdio_ReadInputTrimsWhitespace(t *testing.T) {
	var out bytes.Buffer
	io := New(strings.NewReader("  secret value  \n"), &out)

	got, err := io.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "secret value", got)
	assert.Equal(t, "> ", out.String())
}

func TestStdio_ReadPasswordFallsBackOffTerminal(t *testing.T) {
	var out bytes.Buffer
	io := New(strings.NewReader("hunter2\n"), &out)

	got, err := io.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}
