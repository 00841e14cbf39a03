// Package services implements the application operations on top of a
// database.DBAdapter. Every exported method is one operation: it validates
// input, talks to the store, logs failures and returns *utils.AppError values.
package services

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"athemaria/internal/utils"

	"github.com/go-playground/validator/v10"
)

// AnonymousName is used when a user has no profile display name.
const AnonymousName = "Anonymous"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names in validation messages
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidateInput runs struct validation and converts failures to INVALID_INPUT.
func ValidateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return utils.NewInvalidInputError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return utils.NewInvalidInputError(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s) or characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s item(s) or characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email"
	case "url":
		return fe.Field() + " must be a valid URL"
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// storeError logs a failed store call. AppErrors pass through unchanged so
// not-found and conflict codes reach the caller.
func storeError(op string, err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	log.Printf("Error in %s: %v", op, err)
	return utils.NewDatabaseError("Failed to "+op, err)
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time
