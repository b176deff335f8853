// Package validate runs struct-tag validation and converts failures into errs.ValidationError.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
)

var (
	personName = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
	phoneExpr  = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

var v = build()

func build() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("password", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsDigit) >= 0
	})
	must("personname", func(fl validator.FieldLevel) bool {
		return personName.MatchString(fl.Field().String())
	})
	must("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return phoneExpr.MatchString(s) && len(s) >= 10 && len(s) <= 20
	})
	must("sku", func(fl validator.FieldLevel) bool {
		return model.ValidSKU(strings.ToUpper(fl.Field().String()))
	})
	must("imageurl", func(fl validator.FieldLevel) bool {
		return model.ValidImageURL(fl.Field().String())
	})
	// money fields validate as numbers (gte=0 and friends)
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			fl, _ := d.Float64()
			return fl
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Struct validates s. Failures come back as *errs.ValidationError with one entry per field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &errs.ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe), message(fe))
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func label(field string) string {
	if field == "" {
		return "Value"
	}
	r := []rune(field)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func message(fe validator.FieldError) string {
	name := label(fe.Field())
	k := fe.Kind()
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return name + " is required"
	case "email":
		return "Please provide a valid email address"
	case "password":
		return "Password must contain at least one number"
	case "personname":
		return name + " can only contain letters, spaces, hyphens, and apostrophes"
	case "phone":
		return "Please provide a valid phone number between 10 and 20 characters"
	case "sku":
		return "SKU can only contain uppercase letters, numbers, hyphens, and underscores"
	case "imageurl":
		return "Image URL must be a valid http(s) URL or a base64 image"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		switch k {
		case reflect.String:
			if fe.Param() == "1" {
				return name + " is required"
			}
			return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must contain at least %s item(s)", name, fe.Param())
		}
		if fe.Param() == "0" {
			return name + " cannot be negative"
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		switch k {
		case reflect.String:
			return fmt.Sprintf("%s cannot exceed %s characters", name, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s cannot contain more than %s items", name, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s", name, fe.Param())
	case "uuid", "uuid4":
		return name + " must be a valid id"
	}
	return name + " is invalid"
}
