package entity

import "time"

// Roles understood by the service. RoleCourier triggers provisioning of a
// courier profile in the courier bounded context.
const (
	RoleStandard = "standard user"
	RoleCourier  = "courier"
)

// User is the persistent user record. Password always holds the bcrypt hash;
// the raw password never reaches this struct.
type User struct {
	ID          int64
	Username    string
	Email       string
	Password    string
	PhoneNumber string
	Name        string
	Location    string
	Role        string
	JoinedAt    time.Time
}
