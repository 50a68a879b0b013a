package services

import "errors"

// Analysis service errors
var (
	ErrNoWorkbooks       = errors.New("no workbooks supplied")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)
