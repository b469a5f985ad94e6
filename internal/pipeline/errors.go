package pipeline

import "errors"

// ErrPipelineFatal wraps the reader condition that stopped the pipeline.
var ErrPipelineFatal = errors.New("pipeline: fatal upstream error")
