package enums

// CheckoutOutcome classifies the aggregate result of a submission.
type CheckoutOutcome string

const (
	CheckoutOutcomeRejected       CheckoutOutcome = "rejected"
	CheckoutOutcomeSuccess        CheckoutOutcome = "success"
	CheckoutOutcomePartialSuccess CheckoutOutcome = "partial_success"
	CheckoutOutcomeFailure        CheckoutOutcome = "failure"
)

// String implements fmt.Stringer.
func (c CheckoutOutcome) String() string {
	return string(c)
}

// Placed reports whether at least one order record was created.
func (c CheckoutOutcome) Placed() bool {
	return c == CheckoutOutcomeSuccess || c == CheckoutOutcomePartialSuccess
}

// Terminal reports whether the outcome ends the submission attempt.
func (c CheckoutOutcome) Terminal() bool {
	return c == CheckoutOutcomeSuccess || c == CheckoutOutcomePartialSuccess || c == CheckoutOutcomeFailure
}
