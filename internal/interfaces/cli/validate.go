package cli

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/identifier"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// ValidationResult is the outcome of validating one identifier.
type ValidationResult struct {
	Kind       string `json:"kind"`
	Input      string `json:"input"`
	Valid      bool   `json:"valid"`
	Normalized string `json:"normalized,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type validationResults []ValidationResult

func (r validationResults) TableHeaders() []string {
	return []string{"KIND", "INPUT", "VALID", "NORMALIZED", "REASON"}
}

func (r validationResults) TableRows() [][]string {
	rows := make([][]string, len(r))
	for i, v := range r {
		rows[i] = []string{v.Kind, v.Input, strconv.FormatBool(v.Valid), v.Normalized, v.Reason}
	}
	return rows
}

func (r validationResults) String() string {
	lines := make([]string, len(r))
	for i, v := range r {
		if v.Valid {
			lines[i] = fmt.Sprintf("%s %q: valid (%s)", v.Kind, v.Input, v.Normalized)
		} else {
			lines[i] = fmt.Sprintf("%s %q: invalid, %s", v.Kind, v.Input, v.Reason)
		}
	}
	return strings.Join(lines, "\n")
}

func (r validationResults) invalid() int {
	n := 0
	for _, v := range r {
		if !v.Valid {
			n++
		}
	}
	return n
}

type validatorFunc func(raw string) (string, error)

var validators = map[string]validatorFunc{
	identifier.FieldSiret: func(raw string) (string, error) {
		s, err := identifier.ValidateSiret(raw)
		return s.String(), err
	},
	identifier.FieldSiren: func(raw string) (string, error) {
		s, err := identifier.ValidateSiren(raw)
		return s.String(), err
	},
	identifier.FieldUai: func(raw string) (string, error) {
		u, err := identifier.ValidateUai(raw)
		return u.String(), err
	},
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check SIRET, SIREN and UAI identifiers",
	}
	for _, kind := range []string{identifier.FieldSiret, identifier.FieldSiren, identifier.FieldUai} {
		cmd.AddCommand(newValidateKindCommand(kind))
	}
	return cmd
}

func newValidateKindCommand(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <value>...",
		Short: "Validate one or more " + strings.ToUpper(kind) + " values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := validateAll(kind, args)
			if err := PrintResult(cmd, results); err != nil {
				return err
			}
			if n := results.invalid(); n > 0 {
				return errors.Newf(errors.ErrCodeValidation, "%d of %d %s values are invalid", n, len(results), kind)
			}
			return nil
		},
	}
}

func validateAll(kind string, inputs []string) validationResults {
	validate := validators[kind]
	out := make(validationResults, len(inputs))
	for i, raw := range inputs {
		res := ValidationResult{Kind: kind, Input: raw}
		normalized, err := validate(raw)
		if err != nil {
			res.Reason = err.Error()
			var ve *identifier.ValidationError
			if stderrors.As(err, &ve) {
				res.Reason = ve.Reason
			}
		} else {
			res.Valid = true
			res.Normalized = normalized
		}
		out[i] = res
	}
	return out
}
