package config

import (
	"fmt"
	"strings"
)

// IncompleteError is returned when required record fields are still empty
// after every source was merged and prompting was not allowed.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// FileError describes an unreadable or malformed config file. It is logged
// and the file is ignored; resolution goes on with the other sources.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("config file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
