package auth

import "strings"

// ValidateLogin checks login input. The only format check on the email is
// the presence of an "@".
func ValidateLogin(email, password string) error {
	switch {
	case email == "":
		return &ValidationError{Field: "email", Message: MsgFillAllFields}
	case password == "":
		return &ValidationError{Field: "password", Message: MsgFillAllFields}
	}
	return validateEmail(email)
}

// ValidateRegister checks registration input.
func ValidateRegister(req RegisterRequest) error {
	required := []struct {
		field, value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"password", req.Password},
		{"city", req.City},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Field: r.field, Message: MsgAllFieldsRequired}
		}
	}
	return validateEmail(req.Email)
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return &ValidationError{Field: "email", Message: MsgInvalidEmail}
	}
	return nil
}
