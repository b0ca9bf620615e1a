package utils

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestProcessValidationErrorsMapsFieldsToTags(t *testing.T) {
	type input struct {
		Name  string `validate:"required"`
		Count int    `validate:"min=1"`
	}

	err := validator.New().Struct(input{})
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	fields := ProcessValidationErrors(err)
	if fields["Name"] != "required" {
		t.Fatalf("expected Name=required, got %q", fields["Name"])
	}
	if fields["Count"] != "min" {
		t.Fatalf("expected Count=min, got %q", fields["Count"])
	}
}

func TestProcessValidationErrorsNonValidatorErrors(t *testing.T) {
	var target struct {
		Amount int `json:"amount"`
	}

	cases := []struct {
		name string
		err  error
	}{
		{"malformed body", json.Unmarshal([]byte("{"), &target)},
		{"type mismatch", json.Unmarshal([]byte(`{"amount":"ten"}`), &target)},
		{"plain error", errors.New("unexpected EOF")},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Fatalf("%s: expected a non-nil error fixture", tc.name)
		}
		if fields := ProcessValidationErrors(tc.err); len(fields) != 0 {
			t.Fatalf("%s: expected empty map, got %v", tc.name, fields)
		}
	}
}
