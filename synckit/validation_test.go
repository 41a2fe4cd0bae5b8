package synckit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
)

func TestProductInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      ProductInput
		wantErr bool
		fields  []string
	}{
		{"valid product", ProductInput{Name: "Pen", Type: "Product", Price: "10", Tax: "5"}, false, nil},
		{"valid service", ProductInput{Name: "Repair", Type: "Service", Price: "0", Tax: "0.5"}, false, nil},
		{"padded numbers", ProductInput{Name: "Pen", Type: "Product", Price: " 10.00 ", Tax: "5"}, false, nil},
		{"blank name", ProductInput{Name: "   ", Type: "Product", Price: "1", Tax: "1"}, true, []string{"Name"}},
		{"unknown type", ProductInput{Name: "Pen", Type: "Gadget", Price: "1", Tax: "1"}, true, []string{"Type"}},
		{"negative price", ProductInput{Name: "Pen", Type: "Product", Price: "-1", Tax: "1"}, true, []string{"Price"}},
		{"bad tax", ProductInput{Name: "Pen", Type: "Product", Price: "1", Tax: "five"}, true, []string{"Tax"}},
		{"empty image path", ProductInput{Name: "Pen", Type: "Product", Price: "1", Tax: "1", Images: []string{""}}, true, []string{"Images[0]"}},
		{"everything wrong", ProductInput{}, true, []string{"Name", "Type", "Price", "Tax"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, syncErrors.IsValidation(err))
			assert.False(t, syncErrors.IsRetryable(err))

			var se *syncErrors.SyncError
			require.True(t, syncErrors.As(err, &se))
			fields, ok := se.Metadata["fields"].([]FieldError)
			require.True(t, ok)
			var got []string
			for _, f := range fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestProductInputNormalized(t *testing.T) {
	in := ProductInput{Name: "  Pen ", Type: " Product", Price: "10.50", Tax: "05"}
	out := in.Normalized()

	assert.Equal(t, "Pen", out.Name)
	assert.Equal(t, "Product", out.Type)
	assert.Equal(t, "10.5", out.Price)
	assert.Equal(t, "5", out.Tax)
	assert.Equal(t, "  Pen ", in.Name)
}

func TestProductInputRecord(t *testing.T) {
	r := ProductInput{Name: "Pen", Type: "Product", Price: "10", Tax: "5", Images: []string{"/a.jpg", "/b.jpg"}}.Record()

	assert.True(t, r.IsPending)
	assert.Equal(t, "/a.jpg", r.LocalThumbnail)
	assert.Equal(t, ProductTypeProduct, r.Type)
	assert.Empty(t, r.Image)
	assert.Equal(t, NewStableKey("Pen", "Product", r.Price, r.Tax), r.Key())
}

func TestSanitizeDecimal(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"12":        "12",
		"12.5":      "12.5",
		"1.2.3":     "1.23",
		"₹ 1,299.5": "1299.5",
		"-4":        "4",
		".":         "0.",
		"abc":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeDecimal(in), "SanitizeDecimal(%q)", in)
	}
}

func TestIsNonNegativeDecimal(t *testing.T) {
	assert.True(t, IsNonNegativeDecimal("0"))
	assert.True(t, IsNonNegativeDecimal(" 12.50 "))
	assert.False(t, IsNonNegativeDecimal("-0.01"))
	assert.False(t, IsNonNegativeDecimal(""))
	assert.False(t, IsNonNegativeDecimal("1e"))
}
