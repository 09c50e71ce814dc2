package enums

import "fmt"

// PaymentChannel is the channel the buyer claims to have paid through.
type PaymentChannel string

const (
	PaymentChannelBankTransfer     PaymentChannel = "bank_transfer"
	PaymentChannelEWallet          PaymentChannel = "e_wallet"
	PaymentChannelQRIS             PaymentChannel = "qris"
	PaymentChannelConvenienceStore PaymentChannel = "convenience_store"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelBankTransfer,
	PaymentChannelEWallet,
	PaymentChannelQRIS,
	PaymentChannelConvenienceStore,
}

// String implements fmt.Stringer.
func (p PaymentChannel) String() string {
	return string(p)
}

// IsValid reports whether the value is a supported PaymentChannel.
func (p PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentChannel converts raw input into a PaymentChannel.
func ParsePaymentChannel(value string) (PaymentChannel, error) {
	for _, candidate := range validPaymentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment channel %q", value)
}
