package internal_test

import (
	"testing"

	"github.com/koopa0/system-design/14-group-chat/internal"
	apperrors "github.com/koopa0/system-design/14-group-chat/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuthorize 測試加入授權決策表
func TestAuthorize(t *testing.T) {
	tests := []struct {
		name       string
		hostExists bool
		password   string
		outcome    internal.Outcome
		errCode    string
		errMessage string
	}{
		{
			name:       "no host, empty password",
			password:   "",
			outcome:    internal.OutcomeInvalid,
			errCode:    apperrors.ErrCodePasswordRequired,
			errMessage: "Password is required to create a group",
		},
		{
			name:       "no host, blank password",
			password:   "   ",
			outcome:    internal.OutcomeInvalid,
			errCode:    apperrors.ErrCodePasswordRequired,
			errMessage: "Password is required to create a group",
		},
		{
			name:     "no host, correct password",
			password: testPassword,
			outcome:  internal.OutcomeBecomeHost,
		},
		{
			name:       "no host, wrong password",
			password:   "nope",
			outcome:    internal.OutcomeInvalid,
			errCode:    apperrors.ErrCodeWrongPassword,
			errMessage: "Incorrect password. The password is: 12345",
		},
		{
			name:       "host exists, correct password",
			hostExists: true,
			password:   testPassword,
			outcome:    internal.OutcomeDirectJoin,
		},
		{
			name:       "host exists, empty password",
			hostExists: true,
			password:   "",
			outcome:    internal.OutcomePendingRequest,
		},
		{
			name:       "host exists, blank password",
			hostExists: true,
			password:   "\t ",
			outcome:    internal.OutcomePendingRequest,
		},
		{
			name:       "host exists, wrong password",
			hostExists: true,
			password:   "54321",
			outcome:    internal.OutcomeWrongPassword,
			errCode:    apperrors.ErrCodeWrongPassword,
			errMessage: "Wrong password. The password is: 12345",
		},
		{
			name:       "password is not trimmed before comparison",
			hostExists: true,
			password:   " 12345 ",
			outcome:    internal.OutcomeWrongPassword,
			errCode:    apperrors.ErrCodeWrongPassword,
			errMessage: "Wrong password. The password is: 12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := internal.Authorize(tt.hostExists, tt.password, testPassword)

			assert.Equal(t, tt.outcome, d.Outcome, "outcome = %s", d.Outcome)
			if tt.errCode == "" {
				assert.NoError(t, d.Err)
				return
			}

			require.Error(t, d.Err)
			assert.Equal(t, tt.errCode, apperrors.Code(d.Err))
			assert.Equal(t, tt.errMessage, apperrors.Message(d.Err))
			assert.True(t, apperrors.IsValidation(d.Err))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "invalid", internal.OutcomeInvalid.String())
	assert.Equal(t, "become_host", internal.OutcomeBecomeHost.String())
	assert.Equal(t, "direct_join", internal.OutcomeDirectJoin.String())
	assert.Equal(t, "pending_request", internal.OutcomePendingRequest.String())
	assert.Equal(t, "wrong_password", internal.OutcomeWrongPassword.String())
}

// TestValidateUsername 測試使用者名稱驗證
func TestValidateUsername(t *testing.T) {
	taken := func(name string) bool { return name == "alice" || name == "ALICE" }

	tests := []struct {
		name     string
		input    string
		taken    func(string) bool
		expected string
		errCode  string
		errMsg   string
	}{
		{
			name:     "valid",
			input:    "bob",
			expected: "bob",
		},
		{
			name:     "trimmed",
			input:    "  bob42  ",
			expected: "bob42",
		},
		{
			name:    "empty",
			input:   "",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username is required",
		},
		{
			name:    "whitespace only is too short",
			input:   "     ",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username must be at least 3 characters",
		},
		{
			name:    "too short",
			input:   "ab",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username must be at least 3 characters",
		},
		{
			name:    "too short after trim",
			input:   " ab ",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username must be at least 3 characters",
		},
		{
			name:    "underscore",
			input:   "bob_1",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username can only contain letters and numbers",
		},
		{
			name:    "inner space",
			input:   "bob smith",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username can only contain letters and numbers",
		},
		{
			name:    "non ascii",
			input:   "小明小明",
			errCode: apperrors.ErrCodeInvalidInput,
			errMsg:  "Username can only contain letters and numbers",
		},
		{
			name:    "taken",
			input:   "alice",
			taken:   taken,
			errCode: apperrors.ErrCodeUsernameTaken,
			errMsg:  "Username already taken",
		},
		{
			name:     "nil taken func",
			input:    "alice",
			expected: "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := internal.ValidateUsername(tt.input, tt.taken)

			if tt.errCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
				return
			}

			require.Error(t, err)
			assert.Empty(t, got)
			assert.Equal(t, tt.errCode, apperrors.Code(err))
			assert.Equal(t, tt.errMsg, apperrors.Message(err))
		})
	}
}
