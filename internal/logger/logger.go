package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// Setup installs the process-wide apex/log handler. A nil w writes to stderr.
func Setup(level, format string, w io.Writer) error {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch strings.ToLower(format) {
	case "", "cli":
		log.SetHandler(cli.New(w))
	case "json":
		log.SetHandler(json.New(w))
	case "text":
		log.SetHandler(text.New(w))
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	log.SetLevel(lvl)
	return nil
}
