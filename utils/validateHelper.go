package utils

import "github.com/go-playground/validator/v10"

// ProcessValidationErrors flattens gin binding failures into a field->tag map
// for JSON error responses.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errorResponse["body"] = err.Error()
		return errorResponse
	}

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}
