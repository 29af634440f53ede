package domain

// Choice is the plaintext value of a vote
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

// Valid reports whether c is one of the two votable choices
func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB
}

// SecretVote is an encrypted (playerID, choice) pair. The room never looks
// inside it; only a Revealer inside the tally boundary can open it.
type SecretVote struct {
	Ciphertext      []byte `json:"encryptedVote"`
	ClientPublicKey []byte `json:"clientPublicKey"`
	Nonce           []byte `json:"nonce"`
}

// IsZero reports whether any part of the blob is missing
func (v SecretVote) IsZero() bool {
	return len(v.Ciphertext) == 0 || len(v.ClientPublicKey) == 0 || len(v.Nonce) == 0
}

// Ballot is a secret vote tagged with the player that cast it
type Ballot struct {
	PlayerID string
	Vote     SecretVote
}
