// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Field error message IDs.
const (
	MsgRequired = "validation_required"
	MsgEmail    = "validation_email"
)

var emailRules = []validation.Rule{
	validation.Required.Error(MsgRequired),
	is.Email.Error(MsgEmail),
}

func validateEmail(email string) error {
	return validateFields(validation.Errors{
		"email": validation.Validate(email, emailRules...),
	})
}

func validateEmailChange(oldEmail, newEmail string) error {
	return validateFields(validation.Errors{
		"email":     validation.Validate(oldEmail, emailRules...),
		"new_email": validation.Validate(newEmail, emailRules...),
	})
}

func validateCode(code string) error {
	return validateFields(validation.Errors{
		"code": validation.Validate(code, validation.Required.Error(MsgRequired)),
	})
}

func validateFields(errs validation.Errors) error {
	err := errs.Filter()
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return wrap(ErrValidationFailed, err)
	}

	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		fields[field] = ferr.Error()
	}
	return &Error{
		Kind:    KindValidationFailed,
		Message: ErrValidationFailed.Message,
		Fields:  fields,
		Err:     err,
	}
}
