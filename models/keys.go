package models

// KeyPair holds one user's asymmetric keypair, keys base64 encoded.
// The private key is returned only by the owner-scoped key endpoint and
// must never appear in any other response.
type KeyPair struct {
	UserID     int64  `json:"user_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// UserProfile is the directory service's view of a user.
type UserProfile struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
