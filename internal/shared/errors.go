package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Data errors
	ErrValidation   = fmt.Errorf("validation failed")
	ErrFormat       = fmt.Errorf("malformed document")
	ErrReferential  = fmt.Errorf("referenced list does not exist")
	ErrStorage      = fmt.Errorf("storage failure")
	ErrPayloadParse = fmt.Errorf("malformed custom fields")
	ErrListNotFound = fmt.Errorf("list not found")
	ErrItemNotFound = fmt.Errorf("item not found")

	// Import errors
	ErrImportDeclined = fmt.Errorf("import declined")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
