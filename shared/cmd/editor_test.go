package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEditor(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano -w")

	editor, err := DetectEditor()
	require.NoError(t, err)
	assert.Equal(t, "nano -w", editor)

	t.Setenv("VISUAL", "code --wait")
	editor, err = DetectEditor()
	require.NoError(t, err)
	assert.Equal(t, "code --wait", editor)
}

func TestTextEditor(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "edit.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'comment: edited' >> \"$1\"\n"), 0o700))

	t.Setenv("VISUAL", script)

	content, err := TextEditor([]byte("name: web\n"))
	require.NoError(t, err)
	assert.Equal(t, "name: web\ncomment: edited\n", string(content))

	t.Setenv("VISUAL", "false")
	_, err = TextEditor([]byte("name: web\n"))
	assert.Error(t, err)
}

func TestTextEditorQuotedCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my editors")
	require.NoError(t, os.Mkdir(dir, 0o700))

	script := filepath.Join(dir, "edit.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"comment: $1\" >> \"$2\"\n"), 0o700))

	t.Setenv("VISUAL", "'"+script+"' quoted")

	content, err := TextEditor([]byte("name: web\n"))
	require.NoError(t, err)
	assert.Equal(t, "name: web\ncomment: quoted\n", string(content))

	t.Setenv("VISUAL", "'"+script)
	_, err = TextEditor([]byte("name: web\n"))
	assert.ErrorContains(t, err, "Failed to parse editor command")
}
