package mappings

import "errors"

// Mapping errors.
var (
	ErrMappingNotFound    = errors.New("mapping not found")
	ErrMappingExists      = errors.New("mapping already exists for this type and address")
	ErrInvalidMappingType = errors.New("invalid mapping type")
	ErrActorRequired      = errors.New("actor header is required for mutations")
)
