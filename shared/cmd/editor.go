package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"

	"github.com/smcgo/smc/shared/revert"
)

// DetectEditor returns the text editor to spawn, from $VISUAL, $EDITOR or the usual suspects.
func DetectEditor() (string, error) {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		editor := os.Getenv(env)
		if editor != "" {
			return editor, nil
		}
	}

	for _, p := range []string{"editor", "vi", "emacs", "nano"} {
		_, err := exec.LookPath(p)
		if err == nil {
			return p, nil
		}
	}

	return "", errors.New("No text editor found, please set the EDITOR environment variable")
}

// TextEditor spawns the editor on a temporary YAML file holding inContent and returns the edited content.
func TextEditor(inContent []byte) ([]byte, error) {
	editor, err := DetectEditor()
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "smc_*.yaml")
	if err != nil {
		return nil, err
	}

	reverter := revert.New()
	defer reverter.Fail()

	reverter.Add(func() { _ = os.Remove(f.Name()) })

	_, err = f.Write(inContent)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	err = f.Close()
	if err != nil {
		return nil, err
	}

	cmdParts, err := shellquote.Split(editor)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse editor command %q: %w", editor, err)
	}

	if len(cmdParts) == 0 {
		return nil, errors.New("Empty editor command")
	}

	cmd := exec.Command(cmdParts[0], append(cmdParts[1:], f.Name())...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	if err != nil {
		return nil, err
	}

	return os.ReadFile(f.Name())
}
