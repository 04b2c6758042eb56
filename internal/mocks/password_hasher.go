package mocks

import (
	"errors"

	"github.com/phrazzld/taskflow-api/internal/service/auth"
)

// MockPasswordHasher implements auth.PasswordHasher without bcrypt's cost.
// Hash prefixes the password with "hashed:"; Compare checks that form.
type MockPasswordHasher struct {
	HashErr      error
	CompareCalls int
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	if m.HashErr != nil {
		return "", m.HashErr
	}
	return "hashed:" + password, nil
}

// Compare implements auth.PasswordVerifier.
func (m *MockPasswordHasher) Compare(hashedPassword, password string) error {
	m.CompareCalls++
	if hashedPassword != "hashed:"+password {
		return errors.New("password mismatch")
	}
	return nil
}
