package contract

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging routes diagnostics to stderr so stdout stays reserved for reports.
// Verbose mode lowers the level to debug.
func ConfigureLogging(w io.Writer, verbose bool) {
	if w == nil {
		w = os.Stderr
	}
	log.SetOutput(w)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: !verbose,
		FullTimestamp:    verbose,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	log.WithError(err).Warn(msg)
}
