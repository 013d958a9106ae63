// Package logutil provides logging utilities.
package logutil

import (
	"io"
	"log"
	"os"
)

var (
	out     io.Writer = io.Discard
	outFile *os.File
	loggers []*log.Logger
)

// GetLogger gets a logger with a prefix. The prefix is conventionally a
// bracketed component name followed by a space, like "[server] ".
func GetLogger(prefix string) *log.Logger {
	logger := log.New(out, prefix, log.LstdFlags)
	loggers = append(loggers, logger)
	return logger
}

// SetOutput redirects the output of all loggers obtained with GetLogger to the
// given writer. If the previous output was a file opened by SetOutputFile, it
// is closed.
func SetOutput(newOut io.Writer) {
	closeOutFile()
	out = newOut
	outFile = nil
	applyOutput()
}

// SetOutputFile redirects the output of all loggers obtained with GetLogger to
// the named file, creating it if it doesn't exist. If the previous output was
// a file opened by SetOutputFile, it is closed.
func SetOutputFile(fname string) error {
	file, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	closeOutFile()
	out = file
	outFile = file
	applyOutput()
	return nil
}

func closeOutFile() {
	if outFile != nil {
		outFile.Close()
	}
}

func applyOutput() {
	for _, logger := range loggers {
		logger.SetOutput(out)
	}
}
