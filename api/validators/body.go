package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("delivery_method", func(fl validator.FieldLevel) bool {
		return enums.DeliveryMethod(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("payment_channel", func(fl validator.FieldLevel) bool {
		return enums.PaymentChannel(fl.Field().String()).IsValid()
	})
	return v
}

// DecodeJSONBody strictly decodes the request body into dest and runs its
// validate tags. Field names in errors follow the json tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	present, err := DecodeOptionalJSONBody(r, dest)
	if err != nil {
		return err
	}
	if !present {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	return nil
}

// DecodeOptionalJSONBody behaves like DecodeJSONBody but accepts an empty body,
// reporting it with present=false and leaving dest untouched.
func DecodeOptionalJSONBody(r *http.Request, dest any) (present bool, err error) {
	if r.Body == nil {
		return false, nil
	}
	defer io.Copy(io.Discard, r.Body)

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return true, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if decoder.More() {
		return true, pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}
	if err := validate.Struct(dest); err != nil {
		return true, formatValidationErrors(err)
	}
	return true, nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "delivery_method":
		return fmt.Sprintf("must be one of: %s, %s", enums.DeliveryMethodEmail, enums.DeliveryMethodMessaging)
	case "payment_channel":
		return "is not a supported payment channel"
	}
	return "is invalid"
}
