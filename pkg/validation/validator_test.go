package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticketForm struct {
	Subject  string `json:"subject" validate:"required,notblank,min=3,max=20"`
	Priority string `json:"priority" validate:"omitempty,ticket_priority"`
	Status   string `json:"status" validate:"omitempty,ticket_status"`
	Type     string `json:"type" validate:"omitempty,message_type"`
	Rating   int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

// ---------------------------------------------------------------------------
// ValidateStruct
// ---------------------------------------------------------------------------

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name   string
		form   ticketForm
		fields []string
	}{
		{"valid", ticketForm{Subject: "Card declined", Priority: "high", Status: "open", Type: "text", Rating: 4}, nil},
		{"priority is case insensitive", ticketForm{Subject: "Card declined", Priority: "Urgent"}, nil},
		{"missing subject", ticketForm{}, []string{"subject"}},
		{"blank subject", ticketForm{Subject: "    "}, []string{"subject"}},
		{"short subject", ticketForm{Subject: "hi"}, []string{"subject"}},
		{"unknown priority", ticketForm{Subject: "Card declined", Priority: "asap"}, []string{"priority"}},
		{"unknown status", ticketForm{Subject: "Card declined", Status: "archived"}, []string{"status"}},
		{"unknown type", ticketForm{Subject: "Card declined", Type: "video"}, []string{"type"}},
		{"rating out of range", ticketForm{Subject: "Card declined", Rating: 6}, []string{"rating"}},
		{"several fields", ticketForm{Priority: "asap", Rating: 9}, []string{"subject", "priority", "rating"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.form)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			require.True(t, IsValidationError(err))
			verr := err.(*ValidationError)
			assert.Len(t, verr.Errors, len(tt.fields))
			for _, field := range tt.fields {
				assert.Contains(t, verr.Errors, field)
			}
		})
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	err := ValidateStruct("not a struct")
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

// ---------------------------------------------------------------------------
// ValidationError
// ---------------------------------------------------------------------------

func TestValidationError_Error(t *testing.T) {
	v := &ValidationError{}
	assert.False(t, v.HasErrors())

	v.AddError("subject", "is required")
	v.AddError("content", "must be at most 5000 characters")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "validation failed: content: must be at most 5000 characters; subject: is required", v.Error())
}

func TestValidationError_Messages(t *testing.T) {
	err := ValidateStruct(ticketForm{Subject: "a very long subject that will not fit"})
	require.Error(t, err)
	assert.Equal(t, "must be at most 20 characters", err.(*ValidationError).Errors["subject"])
}

// ---------------------------------------------------------------------------
// ValidateRating / ValidateStringLength
// ---------------------------------------------------------------------------

func TestValidateRating(t *testing.T) {
	for _, rating := range []int{1, 3, 5} {
		assert.NoError(t, ValidateRating(rating))
	}
	for _, rating := range []int{0, -1, 6} {
		assert.Error(t, ValidateRating(rating))
	}
}

func TestValidateStringLength(t *testing.T) {
	assert.NoError(t, ValidateStringLength("refund", 3, 10))
	assert.NoError(t, ValidateStringLength("anything long is fine", 1, 0))
	assert.Error(t, ValidateStringLength("  a ", 2, 10))
	assert.Error(t, ValidateStringLength("way too long", 1, 5))
}
