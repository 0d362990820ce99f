package db

import "fmt"

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = fmt.Errorf("document not found")
	// ErrInvalidData is returned when the document to store is malformed.
	ErrInvalidData = fmt.Errorf("invalid document data")
)
