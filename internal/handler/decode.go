package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/rental-ledger/pkg/apierr"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSON reads a single JSON object into dest, rejecting unknown fields,
// and validates it.
func decodeJSON(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apierr.Wrap(apierr.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": err.Error()})
	}
	if dec.More() {
		return apierr.New(apierr.CodeValidation, "invalid request body").
			WithDetails(map[string]string{"body": "unexpected data after JSON object"})
	}
	return validateStruct(dest)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return validateStruct(dest)
	}
	return decodeJSON(r, dest)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierr.Wrap(apierr.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = validationMessage(fe)
	}
	return apierr.New(apierr.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "eq":
		return "must be " + fe.Param()
	}
	return "is invalid"
}

// queryErrors collects query parameter problems so a request reports all of
// them at once.
type queryErrors map[string]string

func (q queryErrors) err() error {
	if len(q) == 0 {
		return nil
	}
	return apierr.New(apierr.CodeValidation, "invalid query parameters").WithDetails(map[string]string(q))
}

// timeParam parses an RFC 3339 timestamp or a YYYY-MM-DD date (UTC midnight).
func (q queryErrors) timeParam(r *http.Request, name string, required bool) *time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			q[name] = "is required"
		}
		return nil
	}
	t, err := parseTime(raw)
	if err != nil {
		q[name] = "must be an RFC 3339 timestamp or YYYY-MM-DD date"
		return nil
	}
	return &t
}

func (q queryErrors) intParam(r *http.Request, name string, def, minValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minValue {
		q[name] = fmt.Sprintf("must be an integer of at least %d", minValue)
		return def
	}
	return n
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
