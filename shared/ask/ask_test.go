package ask

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scripted(input string) (Asker, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewScriptedAsker(bufio.NewReader(strings.NewReader(input)), out), out
}

func TestAskBool(t *testing.T) {
	asker, out := scripted("maybe\nY\n")

	ok, err := asker.AskBool("Accept? (yes/no) [default=no]: ", "no")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Invalid input")

	asker, _ = scripted("\n")
	ok, err = asker.AskBool("Accept? (yes/no) [default=no]: ", "no")
	require.NoError(t, err)
	assert.False(t, ok)

	asker, _ = scripted("")
	_, err = asker.AskBool("Accept? ", "")
	assert.ErrorIs(t, err, io.EOF)
}

func TestAskString(t *testing.T) {
	asker, out := scripted("bad\ngood\n")

	answer, err := asker.AskString("Name: ", "", func(s string) error {
		if s != "good" {
			return errors.New("Not good")
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "good", answer)
	assert.Contains(t, out.String(), "Invalid input: Not good")

	asker, _ = scripted("\n")
	answer, err = asker.AskString("Domain: ", "Shared Domain", nil)
	require.NoError(t, err)
	assert.Equal(t, "Shared Domain", answer)
}

func TestAskPasswordOnce(t *testing.T) {
	asker, out := scripted("\nsecret")

	pwd, err := asker.AskPasswordOnce("API key: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", pwd)
	assert.Equal(t, 2, strings.Count(out.String(), "API key: "))

	asker, _ = scripted("")
	_, err = asker.AskPasswordOnce("API key: ")
	assert.ErrorIs(t, err, io.EOF)
}
