package users

import (
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/promodoro/backend/internal/apperrors"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)
	validate        = newValidator()
)

func newValidator() *validator.Validate {
	v := apperrors.NewValidator()
	mustRegister(v, "username_chars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "has_lower", containsRune(unicode.IsLower))
	mustRegister(v, "has_upper", containsRune(unicode.IsUpper))
	mustRegister(v, "has_digit", containsRune(unicode.IsDigit))
	mustRegister(v, "has_special", containsRune(func(r rune) bool {
		return !isASCIILetterOrDigit(r)
	}))
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func containsRune(match func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if match(r) {
				return true
			}
		}
		return false
	}
}

func isASCIILetterOrDigit(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Username        string `json:"username" validate:"required,min=4,max=50,username_chars"`
	Password        string `json:"password" validate:"required,max=50,has_lower,has_upper,has_digit,has_special,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

// LoginInput is the payload accepted by Login.
type LoginInput struct {
	Username string `json:"username" validate:"required,min=4,max=50,username_chars"`
	Password string `json:"password" validate:"required,max=50"`
}

var registerMessages = map[string]string{
	"username.required":        "Username is required.",
	"username.min":             "Username is too short.",
	"username.max":             "Username is too long.",
	"username.username_chars":  "Username must be lowercase and contain only numbers and letters.",
	"password.required":        "Password is required.",
	"password.max":             "Password must be less than 50 characters.",
	"password.has_lower":       "Password must contain lowercase letter.",
	"password.has_upper":       "Password must contain uppercase letter.",
	"password.has_digit":       "Password must contain number.",
	"password.has_special":     "Password must contain special character.",
	"password.min":             "Password must be at least 8 characters.",
	"confirm_password.eqfield": "Confirm password does not match.",
}

func describeRegisterError(fieldError validator.FieldError) string {
	if message, ok := registerMessages[fieldError.Field()+"."+fieldError.Tag()]; ok {
		return message
	}
	return apperrors.MessageInvalid
}

func describeLoginError(fieldError validator.FieldError) string {
	if fieldError.Field() == "password" {
		return messageInvalidPassword
	}
	return messageInvalidUsername
}
