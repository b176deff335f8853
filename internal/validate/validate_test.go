package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cosmetics-shop/internal/errs"
)

type line struct {
	Quantity int             `json:"quantity" validate:"min=1"`
	Price    *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
}

type sample struct {
	Name     string `json:"name" validate:"required,min=2,max=50,personname"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128,password"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,phone"`
	SKU      string `json:"sku" validate:"omitempty,sku"`
	Lines    []line `json:"items" validate:"min=1,dive"`
	Method   string `json:"method" validate:"omitempty,oneof=standard express"`
	Cost     decimal.Decimal `json:"cost" validate:"gte=0"`
}

func valid() sample {
	return sample{
		Name:     "Ann-Marie O'Neil",
		Email:    "ann@example.com",
		Password: "secret1",
		Phone:    "+1 (555) 010-2030",
		SKU:      "glow-30",
		Lines:    []line{{Quantity: 1}},
		Cost:     decimal.RequireFromString("4.99"),
	}
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	ve, ok := errs.AsValidation(err)
	require.True(t, ok, "want ValidationError, got %v", err)
	out := map[string]string{}
	for _, f := range ve.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestStruct_Valid(t *testing.T) {
	require.NoError(t, Struct(valid()))
}

func TestStruct_Messages(t *testing.T) {
	s := valid()
	s.Name = "R2D2"
	s.Email = "nope"
	s.Password = "secret"
	s.Phone = "12"
	s.Method = "teleport"
	s.Cost = decimal.RequireFromString("-1")
	neg := decimal.RequireFromString("-0.01")
	s.Lines = []line{{Quantity: 0, Price: &neg}}

	err := Struct(s)
	require.ErrorIs(t, err, errs.ErrValidation)
	got := fields(t, err)
	require.Equal(t, "Name can only contain letters, spaces, hyphens, and apostrophes", got["name"])
	require.Equal(t, "Please provide a valid email address", got["email"])
	require.Equal(t, "Password must contain at least one number", got["password"])
	require.Contains(t, got["phone"], "valid phone number")
	require.Equal(t, "Method must be one of: standard, express", got["method"])
	require.Equal(t, "Cost cannot be negative", got["cost"])
	require.Equal(t, "Quantity must be at least 1", got["items[0].quantity"])
	require.Equal(t, "Price cannot be negative", got["items[0].price"])
}

func TestStruct_LengthsAndEmptySlice(t *testing.T) {
	s := valid()
	s.Name = "A"
	s.SKU = "bad sku!"
	s.Lines = nil

	got := fields(t, Struct(s))
	require.Equal(t, "Name must be at least 2 characters long", got["name"])
	require.Equal(t, "Items must contain at least 1 item(s)", got["items"])
	require.Contains(t, got["sku"], "SKU can only contain")
}

func TestStruct_Required(t *testing.T) {
	got := fields(t, Struct(sample{Lines: []line{{Quantity: 1}}}))
	require.Equal(t, "Email is required", got["email"])
	require.Equal(t, "Password is required", got["password"])
}
