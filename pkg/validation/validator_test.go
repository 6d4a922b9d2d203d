package validation

import (
	"errors"
	"testing"

	"tattoo-app/pkg/apperr"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=artist client"`
	Price    *int64 `json:"price" validate:"omitempty,gte=0"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(signup{Email: "a@b.io", Password: "secret1", Role: "client"}); err != nil {
		t.Errorf("Struct = %v, want nil", err)
	}
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	neg := int64(-5)
	err := Struct(signup{Email: "nope", Password: "123", Role: "admin", Price: &neg})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
	want := "email must be a valid email; password length must be greater than or equal to 6; " +
		"role must be one of: artist, client; price must be greater than or equal to 0"
	if err.Error() != want {
		t.Errorf("err = %q\nwant  %q", err.Error(), want)
	}
}

func TestParseErrors_Unknown(t *testing.T) {
	got := ParseErrors(errors.New("boom"))
	if len(got) != 1 || got[0] != "Unknown error" {
		t.Errorf("ParseErrors = %v", got)
	}
}
