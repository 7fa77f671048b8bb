package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

var loginRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,32}$`)

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// login: 3-32 chars of letters, digits, underscore, dot or hyphen.
	_ = v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		return loginRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}

// Login reports whether s is an acceptable login.
func Login(s string) bool {
	return loginRe.MatchString(strings.TrimSpace(s))
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
