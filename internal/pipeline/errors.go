package pipeline

import "errors"

// ErrEmptyCommand is returned for blank input.
var ErrEmptyCommand = errors.New("pipeline: empty command")
