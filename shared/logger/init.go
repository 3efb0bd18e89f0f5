package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// InitLogger initializes the global logger.
//
// Output goes to stderr unless filepath is set. Without verbose or debug,
// only warnings and errors are shown.
func InitLogger(filepath string, verbose bool, debug bool) error {
	l, err := newLogrus(filepath, verbose, debug)
	if err != nil {
		return err
	}

	Log = newWrapper(l)

	return nil
}

func newLogrus(filepath string, verbose bool, debug bool) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    filepath != "",
		PadLevelText:     true,
		QuoteEmptyFields: true,
	})

	var out io.Writer = os.Stderr
	if filepath != "" {
		f, err := os.OpenFile(filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("Failed to open log file %q: %w", filepath, err)
		}

		out = f
	}

	l.SetOutput(out)

	switch {
	case debug:
		l.SetLevel(logrus.DebugLevel)
	case verbose:
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetLevel(logrus.WarnLevel)
	}

	return l, nil
}
