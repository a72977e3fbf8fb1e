package output

import (
	"errors"

	"github.com/maxvaer/keyprobe/internal/scanner"
)

// MultiWriter fans every call out to several writers. It stops at the first
// failing writer, except for Close which always reaches every writer.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter combines writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) WriteHeader() error {
	for _, w := range m.writers {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) WriteResult(result *scanner.ProbeResult) error {
	for _, w := range m.writers {
		if err := w.WriteResult(result); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) WriteFooter(stats Stats) error {
	for _, w := range m.writers {
		if err := w.WriteFooter(stats); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
