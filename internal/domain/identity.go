package domain

// Identity is the authenticated caller attached to a request after token verification.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}
