package domain

// User is the identity allocation requests are made on behalf of. The
// server authenticates by id only.
type User struct {
	ID    int64
	Email string
}
