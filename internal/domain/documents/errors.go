package documents

import "errors"

// ErrUnsupportedFormat indicates the upload's format is not one the parser handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrCorruptInput indicates the file is unreadable or malformed for its format.
var ErrCorruptInput = errors.New("corrupt document input")

// ErrEmptyDocument indicates no extractable text was found.
var ErrEmptyDocument = errors.New("empty document")

// ErrIndexNotBuilt indicates a retrieval query before any successful build.
var ErrIndexNotBuilt = errors.New("retrieval index not built")
