package validator_test

import (
	"errors"
	"testing"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/validator"
)

type registration struct {
	Username string `json:"username" validate:"required,notblank,min=2,max=32,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name           string
		input          registration
		expectedFields map[string]string
	}{
		{
			name:  "Valid: Standard registration",
			input: registration{Username: "alice", Email: "alice@example.com", Password: "hunter22"},
		},
		{
			name:  "Valid: Username with dot and underscore",
			input: registration{Username: "a.l_i-ce", Email: "user+tag@yahoo.co.uk", Password: "aA1bB2"},
		},
		{
			name:           "Error: Username too short",
			input:          registration{Username: "a", Email: "alice@example.com", Password: "hunter22"},
			expectedFields: map[string]string{"username": "min"},
		},
		{
			name:           "Error: Username with spaces",
			input:          registration{Username: "al ice", Email: "alice@example.com", Password: "hunter22"},
			expectedFields: map[string]string{"username": "username"},
		},
		{
			name:           "Error: Blank username",
			input:          registration{Username: "   ", Email: "alice@example.com", Password: "hunter22"},
			expectedFields: map[string]string{"username": "notblank"},
		},
		{
			name:           "Error: Missing @ sign",
			input:          registration{Username: "alice", Email: "userexample.com", Password: "hunter22"},
			expectedFields: map[string]string{"email": "email"},
		},
		{
			name:           "Error: Password too short and missing email",
			input:          registration{Username: "alice", Password: "aA1"},
			expectedFields: map[string]string{"email": "required", "password": "min"},
		},
	}

	v := validator.New()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.input)

			if tc.expectedFields == nil {
				if err != nil {
					t.Errorf("Struct(%+v) failed unexpectedly: got error %v, want nil", tc.input, err)
				}
				return
			}

			if err == nil {
				t.Errorf("Struct(%+v) passed unexpectedly: got nil, want fields %v", tc.input, tc.expectedFields)
				return
			}

			if kind := apperror.KindOf(err); kind != apperror.KindBadRequest {
				t.Errorf("Struct(%+v) got kind %q, want %q", tc.input, kind, apperror.KindBadRequest)
			}

			var fieldErrs *apperror.FieldErrors
			if !errors.As(err, &fieldErrs) {
				t.Fatalf("Struct(%+v) error %v carries no field errors", tc.input, err)
			}

			if len(fieldErrs.Fields) != len(tc.expectedFields) {
				t.Errorf("Struct(%+v) got fields %v, want %v", tc.input, fieldErrs.Fields, tc.expectedFields)
			}
			for field, tag := range tc.expectedFields {
				if fieldErrs.Fields[field] != tag {
					t.Errorf("Struct(%+v) field %q got tag %q, want %q", tc.input, field, fieldErrs.Fields[field], tag)
				}
			}
		})
	}
}
