package ask

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"
)

// Asker holds a reader for reading input into CLI questions.
type Asker struct {
	reader *bufio.Reader
	out    io.Writer

	// fd is the terminal used for hidden input, -1 to read passwords like any other answer.
	fd int
}

// NewAsker returns a new Asker that utilizes the supplied reader and asks on stdout.
// Passwords are read without echo when stdin is a terminal.
func NewAsker(reader *bufio.Reader) Asker {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fd = -1
	}

	return Asker{reader: reader, out: os.Stdout, fd: fd}
}

// NewScriptedAsker returns an Asker reading every answer, passwords included, from reader.
func NewScriptedAsker(reader *bufio.Reader, out io.Writer) Asker {
	return Asker{reader: reader, out: out, fd: -1}
}

// AskBool asks a question and expect a yes/no answer.
func (a *Asker) AskBool(question string, defaultAnswer string) (bool, error) {
	for {
		answer, err := a.askQuestion(question, defaultAnswer)
		if err != nil {
			return false, err
		}

		if slices.Contains([]string{"yes", "y"}, strings.ToLower(answer)) {
			return true, nil
		} else if slices.Contains([]string{"no", "n"}, strings.ToLower(answer)) {
			return false, nil
		}

		a.invalidInput()
	}
}

// AskString asks the user to enter a string, which optionally
// conforms to a validation function.
func (a *Asker) AskString(question string, defaultAnswer string, validate func(string) error) (string, error) {
	for {
		answer, err := a.askQuestion(question, defaultAnswer)
		if err != nil {
			return "", err
		}

		if validate != nil {
			err := validate(answer)
			if err != nil {
				_, _ = fmt.Fprintf(a.out, "Invalid input: %s\n\n", err)
				continue
			}

			return answer, nil
		}

		if len(answer) != 0 {
			return answer, nil
		}

		a.invalidInput()
	}
}

// AskPasswordOnce asks the user to enter a password or API key, refusing empty ones.
func (a *Asker) AskPasswordOnce(question string) (string, error) {
	for {
		_, _ = fmt.Fprint(a.out, question)

		var pwd string
		if a.fd >= 0 {
			raw, err := term.ReadPassword(a.fd)
			_, _ = fmt.Fprintln(a.out, "")
			if err != nil {
				return "", err
			}

			pwd = string(raw)
		} else {
			answer, err := a.readAnswer("")
			if err != nil && answer == "" {
				return "", err
			}

			pwd = answer
		}

		if len(pwd) > 0 {
			return pwd, nil
		}

		a.invalidInput()
	}
}

// Ask a question on the output stream and read the answer from the input stream.
func (a *Asker) askQuestion(question, defaultAnswer string) (string, error) {
	_, _ = fmt.Fprint(a.out, question)

	return a.readAnswer(defaultAnswer)
}

// Read the user's answer from the input stream, trimming newline and providing a default.
func (a *Asker) readAnswer(defaultAnswer string) (string, error) {
	answer, err := a.reader.ReadString('\n')
	answer = strings.TrimSpace(strings.TrimSuffix(answer, "\n"))
	if answer == "" {
		answer = defaultAnswer
	}

	return answer, err
}

// Print an invalid input message.
func (a *Asker) invalidInput() {
	_, _ = fmt.Fprintf(a.out, "Invalid input, try again.\n\n")
}
