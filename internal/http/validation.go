package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var fieldMessages = map[string]map[string]string{
	"licenceNumber": {
		"required": "Licence number of the car is required",
		"min":      "The length of licence number must be between 2 and 10 characters.",
		"max":      "The length of licence number must be between 2 and 10 characters.",
	},
	"streetName": {
		"required": "Street Name is required",
	},
	"ratePerMinute": {
		"required": "Rate per minute is required",
	},
}

// bindingErrorResponse renders request validation failures as a list of
// messages. Malformed JSON is reported as a single error.
func bindingErrorResponse(err error) gin.H {
	messages := validationMessages(err)
	if len(messages) == 0 {
		return errorResponse("invalid request body: " + err.Error())
	}
	return gin.H{"errors": messages}
}

func validationMessages(err error) []string {
	var sliceErr binding.SliceValidationError
	if errors.As(err, &sliceErr) {
		var out []string
		for _, elemErr := range sliceErr {
			out = append(out, validationMessages(elemErr)...)
		}
		return out
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	if msg, ok := fieldMessages[field][fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s failed on %s", field, fe.Tag())
}

// jsonFieldName maps the Go field name back to the JSON key.
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}
