package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"atamind/internal/models"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "user@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "user+tag@example.com",
			wantErr: false,
		},
		{
			name:    "missing @",
			email:   "testexample.com",
			wantErr: true,
		},
		{
			name:    "missing domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "missing local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "empty string",
			email:   "",
			wantErr: true,
		},
		{
			name:    "spaces in email",
			email:   "test @example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid name",
			input:   "John Doe",
			wantErr: false,
		},
		{
			name:    "single name",
			input:   "John",
			wantErr: false,
		},
		{
			name:    "empty name",
			input:   "",
			wantErr: true,
		},
		{
			name:    "name too short",
			input:   "J",
			wantErr: true,
		},
		{
			name:    "name with hyphen",
			input:   "Mary-Jane",
			wantErr: false,
		},
		{
			name:    "name with apostrophe",
			input:   "O'Brien",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "valid password",
			password: "password123",
			wantErr:  false,
		},
		{
			name:     "password exactly 8 characters",
			password: "pass1234",
			wantErr:  false,
		},
		{
			name:     "password too short",
			password: "pass123",
			wantErr:  true,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "long password",
			password: "thisIsAVeryLongPasswordThatShouldBeValid123",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChildAge(t *testing.T) {
	tests := []struct {
		age     int
		wantErr bool
	}{
		{2, true},
		{3, false},
		{7, false},
		{12, false},
		{13, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("age %d", tt.age), func(t *testing.T) {
			err := ValidateChildAge(tt.age)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChildAge(%d) error = %v, wantErr %v", tt.age, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChild(t *testing.T) {
	tests := []struct {
		name      string
		child     models.Child
		wantField string
	}{
		{
			name:  "valid child",
			child: models.Child{Name: "Elif", Age: 5, LearningStyle: models.LearningVisual},
		},
		{
			name:  "turkish two letter name",
			child: models.Child{Name: "Öz", Age: 9},
		},
		{
			name:      "missing name",
			child:     models.Child{Age: 5},
			wantField: "name",
		},
		{
			name:      "too old",
			child:     models.Child{Name: "Elif", Age: 15},
			wantField: "age",
		},
		{
			name:      "unknown learning style",
			child:     models.Child{Name: "Elif", Age: 5, LearningStyle: "telepathic"},
			wantField: "learning_style",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChild(&tt.child)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateChild() unexpected error = %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantField {
				t.Errorf("ValidateChild() error = %v, want field %q", err, tt.wantField)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{"normal message", "Çocuğuma dürüstlüğü anlatmak istiyorum", false},
		{"blank", "   ", true},
		{"too long", strings.Repeat("ş", MaxMessageLength+1), true},
		{"exactly max", strings.Repeat("ş", MaxMessageLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
