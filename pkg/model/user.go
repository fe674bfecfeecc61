package model

// User is the identity record kept for the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
