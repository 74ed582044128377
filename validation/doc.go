// Package validation validates request input.
//
// Request structs carry `validate` tags and are checked with Validate;
// ad-hoc checks (path params, parsed values) use the chainable Validator:
//
//	err := validation.New().
//	    ContentHash("hash", c.Param("hash")).
//	    Positive("speaker_id", id).
//	    Validate()
//
// Both return a VALIDATION_ERROR whose details list the failing fields by
// their json names.
package validation
