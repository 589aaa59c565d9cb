package ingest

import "errors"

var (
	ErrNilDependency = errors.New("ingest: nil dependency")
	ErrEmptyBatch    = errors.New("ingest: no events to submit")
	ErrSubmitFailed  = errors.New("ingest: failed to submit event")
)
