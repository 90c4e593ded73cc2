package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username:    "  alice  ",
		Password:    "  pass1234  ",
		DisplayName: " Alice B ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
	assert.Equal(t, "Alice B", req.DisplayName)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	reason := "seller shipped <script>alert('x')</script> nothing"
	req := RaiseDisputeRequest{
		Reason: reason,
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

func TestSanitizeStruct_CreateEscrowRequest(t *testing.T) {
	req := CreateEscrowRequest{
		SellerID:    "  3f2a0b1c-0000-0000-0000-000000000000  ",
		Currency:    " USD ",
		Description: "  freelance work <b>rush</b>  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "3f2a0b1c-0000-0000-0000-000000000000", req.SellerID)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "freelance work &lt;b&gt;rush&lt;/b&gt;", req.Description)
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"alice-01",
		"BOB_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"alice 01",    // space
		"alice<01>",   // angle brackets
		"alice;DROP",  // semicolon
		"",            // empty
		"hello world", // space
		"alice\n01",   // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
