package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
)

// SubmissionInput describes everything that must be in place before orders are created.
type SubmissionInput struct {
	LineItemCount       int
	DeliveryConfirmed   bool
	PaymentChannel      enums.PaymentChannel
	PayerAccountRef     string
	PayerTransactionRef string
}

// FieldViolation names a missing or invalid checkout field.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidateSubmission reports every unmet submission precondition at once.
func ValidateSubmission(in SubmissionInput) error {
	var violations []FieldViolation
	if in.LineItemCount <= 0 {
		violations = append(violations, FieldViolation{Field: "line_items", Reason: "basket is empty"})
	}
	if !in.DeliveryConfirmed {
		violations = append(violations, FieldViolation{Field: "delivery", Reason: "delivery method must be confirmed"})
	}
	if !in.PaymentChannel.IsValid() {
		violations = append(violations, FieldViolation{Field: "payment_channel", Reason: "unsupported payment channel"})
	}
	if strings.TrimSpace(in.PayerAccountRef) == "" {
		violations = append(violations, FieldViolation{Field: "payer_account_ref", Reason: "required"})
	}
	if strings.TrimSpace(in.PayerTransactionRef) == "" {
		violations = append(violations, FieldViolation{Field: "payer_transaction_ref", Reason: "required"})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("checkout incomplete: %d field(s) need attention", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
