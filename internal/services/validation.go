package services

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared by every service in the package
var validate = validator.New()

// isEmailAddress reports whether s is a well-formed email address. Account
// identifiers that pass can receive security notices.
func isEmailAddress(s string) bool {
	return validate.Var(s, "email") == nil
}
