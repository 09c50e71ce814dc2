package checkout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var contactValidator = validator.New()

// DeliveryInfo is the fulfillment destination derived from a confirmed delivery state.
// Exactly one of ContactEmail and ContactHandle is set.
type DeliveryInfo struct {
	Method        enums.DeliveryMethod `json:"method"`
	ContactEmail  string               `json:"contact_email,omitempty"`
	ContactHandle string               `json:"contact_handle,omitempty"`
}

// DeliveryState is Unselected, Selecting{method, contact} or Confirmed{method, contact}.
// Fields are unexported so a Confirmed state with an empty contact cannot be built.
// The zero value is Unselected.
type DeliveryState struct {
	phase   enums.DeliveryPhase
	method  enums.DeliveryMethod
	contact string
}

// Unselected returns the initial delivery state.
func Unselected() DeliveryState {
	return DeliveryState{phase: enums.DeliveryPhaseUnselected}
}

func (d DeliveryState) Phase() enums.DeliveryPhase {
	if d.phase == "" {
		return enums.DeliveryPhaseUnselected
	}
	return d.phase
}

func (d DeliveryState) Method() enums.DeliveryMethod { return d.method }

func (d DeliveryState) Contact() string { return d.contact }

// Confirmed reports whether submission is unblocked.
func (d DeliveryState) Confirmed() bool {
	return d.Phase() == enums.DeliveryPhaseConfirmed
}

// Choose enters Selecting for method with the profile default as the editable contact.
// Choosing again while Selecting switches the method.
func (d DeliveryState) Choose(method enums.DeliveryMethod, defaultContact string) (DeliveryState, error) {
	if !method.IsValid() {
		return d, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported delivery method %q", method))
	}
	if d.Phase() == enums.DeliveryPhaseConfirmed {
		return d, d.transitionError("choose")
	}
	return DeliveryState{
		phase:   enums.DeliveryPhaseSelecting,
		method:  method,
		contact: strings.TrimSpace(defaultContact),
	}, nil
}

// Edit changes the contact while Selecting. The value may be empty until confirmation.
func (d DeliveryState) Edit(value string) (DeliveryState, error) {
	if d.Phase() != enums.DeliveryPhaseSelecting {
		return d, d.transitionError("edit")
	}
	d.contact = value
	return d, nil
}

// Confirm validates the contact and enters Confirmed.
func (d DeliveryState) Confirm(value string) (DeliveryState, error) {
	if d.Phase() != enums.DeliveryPhaseSelecting {
		return d, d.transitionError("confirm")
	}
	contact, err := normalizeContact(d.method, value)
	if err != nil {
		return d, err
	}
	return DeliveryState{phase: enums.DeliveryPhaseConfirmed, method: d.method, contact: contact}, nil
}

// Reset discards a confirmed contact from the session and returns to Unselected.
func (d DeliveryState) Reset() (DeliveryState, error) {
	if d.Phase() != enums.DeliveryPhaseConfirmed {
		return d, d.transitionError("reset")
	}
	return Unselected(), nil
}

// Info returns the fulfillment destination; ok is false unless Confirmed.
func (d DeliveryState) Info() (DeliveryInfo, bool) {
	if !d.Confirmed() {
		return DeliveryInfo{}, false
	}
	info := DeliveryInfo{Method: d.method}
	switch d.method {
	case enums.DeliveryMethodEmail:
		info.ContactEmail = d.contact
	case enums.DeliveryMethodMessaging:
		info.ContactHandle = d.contact
	}
	return info, true
}

func (d DeliveryState) transitionError(action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s delivery while %s", action, d.Phase())).WithDetails(map[string]any{
		"phase":  d.Phase(),
		"action": action,
	})
}

func normalizeContact(method enums.DeliveryMethod, value string) (string, error) {
	contact := strings.TrimSpace(value)
	if contact == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "contact is required").WithDetails(map[string]any{"field": "contact"})
	}
	if method == enums.DeliveryMethodEmail {
		if err := contactValidator.Var(contact, "email"); err != nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "contact must be a valid email address").WithDetails(map[string]any{"field": "contact"})
		}
	}
	return contact, nil
}

type deliveryStateJSON struct {
	Phase   enums.DeliveryPhase  `json:"phase"`
	Method  enums.DeliveryMethod `json:"method,omitempty"`
	Contact string               `json:"contact,omitempty"`
}

func (d DeliveryState) MarshalJSON() ([]byte, error) {
	return json.Marshal(deliveryStateJSON{Phase: d.Phase(), Method: d.method, Contact: d.contact})
}

// UnmarshalJSON re-validates the decoded state so stored sessions cannot smuggle in
// a confirmed state without a contact.
func (d *DeliveryState) UnmarshalJSON(data []byte) error {
	var raw deliveryStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Phase {
	case "", enums.DeliveryPhaseUnselected:
		*d = Unselected()
	case enums.DeliveryPhaseSelecting:
		next, err := Unselected().Choose(raw.Method, "")
		if err != nil {
			return err
		}
		next.contact = raw.Contact
		*d = next
	case enums.DeliveryPhaseConfirmed:
		selecting, err := Unselected().Choose(raw.Method, "")
		if err != nil {
			return err
		}
		confirmed, err := selecting.Confirm(raw.Contact)
		if err != nil {
			return err
		}
		*d = confirmed
	default:
		return fmt.Errorf("unknown delivery phase %q", raw.Phase)
	}
	return nil
}
