package membership

// Hub invocations for group membership. Booking groups live on the order
// status hub; restaurant groups on the notification and location hubs.
const (
	JoinBookingGroup  = "JoinBookingGroup"
	LeaveBookingGroup = "LeaveBookingGroup"

	JoinRestaurantGroup  = "JoinRestaurantGroup"
	LeaveRestaurantGroup = "LeaveRestaurantGroup"

	JoinRestaurantLocationGroup  = "JoinRestaurantLocationGroup"
	LeaveRestaurantLocationGroup = "LeaveRestaurantLocationGroup"
)
