package users

import "time"

// MaxUsernameLength bounds usernames to the width of the users.username column.
const MaxUsernameLength = 150

// User is an account able to own events. PasswordHash is a bcrypt hash and
// never leaves the service layer in rendered output.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
