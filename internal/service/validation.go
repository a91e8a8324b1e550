package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
)

var domesticPhone = regexp.MustCompile(`^[0-9]{10,11}$`)

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("domestic_phone", func(fl validator.FieldLevel) bool {
		return domesticPhone.MatchString(fl.Field().String())
	})

	return v
}

// fieldErrors turns validator output into a ValidationError. Errors that are
// not field errors are returned unchanged.
func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "domestic_phone":
		return "must be 10 or 11 digits"
	}
	return "is invalid"
}

func normalizeInfo(info models.CustomerInfo) models.CustomerInfo {
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	info.Address = strings.TrimSpace(info.Address)
	info.PhoneNumber = strings.TrimSpace(info.PhoneNumber)
	return info
}

// validateCheckout checks customer info and payment method together so the
// caller gets every field error at once.
func validateCheckout(v *validator.Validate, info models.CustomerInfo, method models.PaymentMethod) (models.CustomerInfo, error) {
	info = normalizeInfo(info)

	fields := map[string]string{}
	if err := v.Struct(info); err != nil {
		verr := fieldErrors(err)
		var ve *ValidationError
		if !errors.As(verr, &ve) {
			return info, verr
		}
		fields = ve.Fields
	}

	if method == "" {
		fields["paymentMethod"] = "is required"
	} else if !method.Valid() {
		fields["paymentMethod"] = fmt.Sprintf("must be one of %s, %s",
			models.PaymentMethodBankTransfer, models.PaymentMethodCashOnDelivery)
	}

	if len(fields) > 0 {
		return info, &ValidationError{Fields: fields}
	}
	return info, nil
}
