package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func OK(msg string) Response {
	return Response{
		Success: true,
		Message: msg,
	}
}

func Error(msg string) Response {
	return Response{
		Success: false,
		Message: msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is required", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "len":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be exactly %s characters", err.Field(), err.Param()))
		case "numeric":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must contain only digits", err.Field()))
		case "username":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must contain only letters, digits and underscores", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Success: false,
		Message: strings.Join(errMsgs, ", "),
	}
}
