package enums

// OrderStatus is owned by the order-management backend; checkout only ever writes Pending.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCanceled  OrderStatus = "Canceled"
)

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}
