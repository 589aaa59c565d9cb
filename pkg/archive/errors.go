package archive

import "errors"

var (
	ErrNilClient     = errors.New("archive: nil opensearch client")
	ErrIndexFailed   = errors.New("archive: failed to index dead letter")
	ErrSearchFailed  = errors.New("archive: failed to search dead letters")
	ErrInvalidRecord = errors.New("archive: record requires event_id and channel")
)
