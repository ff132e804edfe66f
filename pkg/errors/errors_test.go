package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.ErrCodeInternal, "unexpected failure"},
		{"cfd not found", errors.ErrCodeCfdNotFound, "cfd 40025214 not found"},
		{"invalid uai", errors.ErrCodeInvalidUai, "uai 0951099C"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "ignored"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	root := stderrors.New("connection reset")
	wrapped := errors.Wrap(root, errors.ErrCodeDatabaseError, "query failed")

	require.NotNil(t, wrapped)
	assert.True(t, stderrors.Is(wrapped, root))
	assert.Contains(t, wrapped.Error(), "connection reset")
	assert.Contains(t, wrapped.Error(), "[COMMON_012]")
}

func TestWrap_UnknownKeepsOriginalCode(t *testing.T) {
	inner := errors.New(errors.ErrCodeRncpNotFound, "rncp RNCP1234 not found")
	outer := errors.Wrap(inner, errors.CodeUnknown, "merge failed")

	assert.Equal(t, errors.ErrCodeRncpNotFound, outer.Code)
}

func TestWithDetail_DoesNotMutateReceiver(t *testing.T) {
	base := errors.NotFound("commune")
	withDetail := base.WithDetailf("insee=%s", "75056")

	assert.Empty(t, base.Detail)
	assert.Equal(t, "insee=75056", withDetail.Detail)

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithDetail("x"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_TraversesFmtWrapping(t *testing.T) {
	inner := errors.New(errors.ErrCodeCommuneNotFound, "commune not found")
	outer := fmt.Errorf("row 12: %w", inner)

	assert.True(t, errors.IsCode(outer, errors.ErrCodeCommuneNotFound))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeCfdNotFound))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeCfdNotFound))
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"generic", errors.NotFound("x"), true},
		{"cfd", errors.New(errors.ErrCodeCfdNotFound, "x"), true},
		{"commune wrapped", fmt.Errorf("ctx: %w", errors.New(errors.ErrCodeCommuneNotFound, "x")), true},
		{"internal", errors.Internal("x"), false},
		{"plain", stderrors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, errors.IsNotFound(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeInvalidSiret, errors.GetCode(fmt.Errorf("w: %w", errors.New(errors.ErrCodeInvalidSiret, "x"))))
}

// ─────────────────────────────────────────────────────────────────────────────
// Codes
// ─────────────────────────────────────────────────────────────────────────────

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "CERT", errors.ModuleForCode(errors.ErrCodeCfdNotFound))
	assert.Equal(t, "COMMON", errors.ModuleForCode(errors.ErrCodeInternal))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(errors.CodeOK))
}

func TestIsRowFatal(t *testing.T) {
	assert.True(t, errors.IsRowFatal(errors.ErrCodeCfdNotFound))
	assert.True(t, errors.IsRowFatal(errors.ErrCodeInvalidModalite))
	assert.True(t, errors.IsRowFatal(errors.ErrCodeInvalidUai))
	assert.False(t, errors.IsRowFatal(errors.ErrCodePeriodeIncoherente))
	assert.False(t, errors.IsRowFatal(errors.ErrCodeDatabaseError))
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "cfd not found", errors.DefaultMessageForCode(errors.ErrCodeCfdNotFound))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode(errors.ErrorCode("NOPE_1")))
}

func TestErrorCodeMessage_FormationCodesAreRowFatal(t *testing.T) {
	var form []errors.ErrorCode
	for code, msg := range errors.ErrorCodeMessage {
		assert.NotEqual(t, "UNKNOWN", errors.ModuleForCode(code))
		assert.NotEmpty(t, msg)
		if errors.ModuleForCode(code) == "FORM" {
			form = append(form, code)
			assert.True(t, errors.IsRowFatal(code), "code %s", code)
		}
	}
	assert.ElementsMatch(t, []errors.ErrorCode{
		errors.ErrCodeCommuneNotFound,
		errors.ErrCodeGeoPointInvalid,
		errors.ErrCodeInvalidModalite,
		errors.ErrCodeSessionUnmatched,
	}, form)
}
