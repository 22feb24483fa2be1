package services

import "errors"

// Upload rejection causes. They are wrapped into API errors at the
// service boundary so transport code can render RFC 7807 responses.
var (
	ErrInvalidFileType = errors.New("only .xlsx workbooks are accepted")
	ErrFileTooLarge    = errors.New("file exceeds the maximum upload size")
	ErrTemporaryFile   = errors.New("Excel lock files (~$) are not accepted")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
	ErrTooManyFiles    = errors.New("too many files in batch request")
)
