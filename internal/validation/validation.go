package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"atamind/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MaxMessageLength bounds a guardian message before it reaches the pipeline
const MaxMessageLength = 2000

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks if a name is valid. Length is counted in runes so "Öz" passes.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateChildAge checks the age accepted on profile create/update
func ValidateChildAge(age int) error {
	if age < models.MinChildAge || age > models.MaxChildAge {
		return ValidationError{
			Field:   "age",
			Message: fmt.Sprintf("age must be between %d and %d", models.MinChildAge, models.MaxChildAge),
		}
	}
	return nil
}

// ValidateChild checks a profile before it is stored
func ValidateChild(child *models.Child) error {
	if err := ValidateName(child.Name); err != nil {
		return err
	}
	if err := ValidateChildAge(child.Age); err != nil {
		return err
	}
	if _, ok := models.ParseLearningStyle(string(child.LearningStyle)); !ok {
		return ValidationError{Field: "learning_style", Message: "learning style must be visual, auditory, kinesthetic or mixed"}
	}
	return nil
}

// ValidateMessage checks a guardian message sent to story generation
func ValidateMessage(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ValidationError{Field: "message", Message: "message is required"}
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return ValidationError{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", MaxMessageLength)}
	}
	return nil
}
