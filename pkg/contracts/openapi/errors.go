package openapi

import "errors"

// ErrUnknownRoute is returned when the document has no operation for a request
var ErrUnknownRoute = errors.New("route not described by the API document")
