package enums

import "fmt"

// ProductType tags the catalog category of a purchasable item.
type ProductType string

const (
	ProductTypeGameCredit   ProductType = "game_credit"
	ProductTypeGiftCard     ProductType = "gift_card"
	ProductTypeSubscription ProductType = "subscription"
)

var validProductTypes = []ProductType{
	ProductTypeGameCredit,
	ProductTypeGiftCard,
	ProductTypeSubscription,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductType.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresGameContext reports whether fulfillment needs a destination game account.
func (p ProductType) RequiresGameContext() bool {
	return p == ProductTypeGameCredit
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
