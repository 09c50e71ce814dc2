package enums

// DeliveryPhase names the state of the delivery method selection.
type DeliveryPhase string

const (
	DeliveryPhaseUnselected DeliveryPhase = "unselected"
	DeliveryPhaseSelecting  DeliveryPhase = "selecting"
	DeliveryPhaseConfirmed  DeliveryPhase = "confirmed"
)

// String implements fmt.Stringer.
func (d DeliveryPhase) String() string {
	return string(d)
}
