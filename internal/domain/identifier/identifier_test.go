package identifier

import (
	stderrors "errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// SIRET
// ─────────────────────────────────────────────────────────────────────────────

func TestValidateSiret(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    Siret
		wantErr bool
	}{
		{"13 digits padded", "2408240600034", "02408240600034", false},
		{"14 digits", "02408240600034", "02408240600034", false},
		{"spaces stripped", "024 082 406 00034", "02408240600034", false},
		{"luhn failure", "50000000000000", "", true},
		{"too short", "12345678", "", true},
		{"too long", "123456789012345", "", true},
		{"letters", "2408240600A34", "", true},
		{"empty", "", "", true},
		{"la poste digit sum", "35600000000001", "35600000000001", false},
		{"la poste luhn valid", "35600000000014", "35600000000014", false},
		{"la poste rejected", "35600000000002", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateSiret(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				require.True(t, stderrors.As(err, &ve))
				assert.Equal(t, FieldSiret, ve.Field)
				assert.Equal(t, tc.raw, ve.Raw)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSiret))
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSiret_Siren(t *testing.T) {
	s, err := ValidateSiret("2408240600034")
	require.NoError(t, err)
	assert.Equal(t, Siren("024082406"), s.Siren())
}

// referenceLuhn computes the Luhn key independently of the implementation.
func referenceLuhn(s string) bool {
	total := 0
	for i, r := range s {
		d := int(r - '0')
		if (len(s)-i)%2 == 0 {
			d = (d*2)/10 + (d*2)%10
		}
		total += d
	}
	return total%10 == 0
}

func TestValidateSiret_LuhnProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		var sb strings.Builder
		for j := 0; j < 14; j++ {
			sb.WriteByte(byte('0' + rng.Intn(10)))
		}
		raw := sb.String()
		if strings.HasPrefix(raw, laPostePrefix) {
			continue
		}
		_, err := ValidateSiret(raw)
		assert.Equal(t, referenceLuhn(raw), err == nil, raw)
	}
}

func TestValidateSiret_LaPosteProperty(t *testing.T) {
	for suffix := 0; suffix < 100000; suffix += 7 {
		raw := fmt.Sprintf("%s%05d", laPostePrefix, suffix)
		_, err := ValidateSiret(raw)
		want := referenceLuhn(raw) || digitSum(raw)%5 == 0
		assert.Equal(t, want, err == nil, raw)
	}
}

func TestIsValidSiret(t *testing.T) {
	assert.True(t, IsValidSiret("2408240600034"))
	assert.False(t, IsValidSiret("50000000000000"))
}

// ─────────────────────────────────────────────────────────────────────────────
// SIREN
// ─────────────────────────────────────────────────────────────────────────────

func TestValidateSiren(t *testing.T) {
	got, err := ValidateSiren("024082406")
	require.NoError(t, err)
	assert.Equal(t, Siren("024082406"), got)

	_, err = ValidateSiren("024082407")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSiren))

	_, err = ValidateSiren("24082406")
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// UAI
// ─────────────────────────────────────────────────────────────────────────────

func TestValidateUai(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    Uai
		wantErr bool
	}{
		{"short numeric padded", "951099D", "0951099D", false},
		{"already padded", "0951099D", "0951099D", false},
		{"lowercase", "0951099d", "0951099D", false},
		{"checksum mismatch", "0951099C", "", true},
		{"two letters", "095109DD", "", true},
		{"no letter", "0951099", "", true},
		{"too many digits", "09510990D", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateUai(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				require.True(t, stderrors.As(err, &ve))
				assert.Equal(t, FieldUai, ve.Field)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUai))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateUai_ChecksumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := rng.Intn(10000000)
		for _, letter := range uaiAlphabet {
			raw := fmt.Sprintf("%07d%c", n, letter)
			_, err := ValidateUai(raw)
			assert.Equal(t, byte(letter) == uaiAlphabet[n%23], err == nil, raw)
		}
	}
}

func TestValidateUai_RoundTrip(t *testing.T) {
	for _, raw := range []string{"951099D", "0951099d", " 0951099D "} {
		first, err := ValidateUai(raw)
		require.NoError(t, err)
		second, err := ValidateUai(first.String())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}
