// Package secretvote seals a player's choice so that only the holder of the
// server key can read it. The room coordinator handles sealed votes as opaque
// blobs; Keypair.Reveal is the single decrypting entry point.
package secretvote

import (
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"veil/internal/domain"
)

const keyInfo = "veil vote v1"

var (
	ErrInvalidKey       = errors.New("invalid public key")
	ErrMalformedVote    = errors.New("malformed secret vote")
	ErrInvalidPlaintext = errors.New("invalid vote plaintext")
)

// Keypair is the server side X25519 key used to open sealed votes
type Keypair struct {
	private [curve25519.ScalarSize]byte
	public  []byte
}

// NewKeypair generates a fresh server key
func NewKeypair() (*Keypair, error) {
	k := &Keypair{}
	if _, err := rand.Read(k.private[:]); err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	pub, err := curve25519.X25519(k.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	k.public = pub

	return k, nil
}

// PublicKey returns a copy of the public half, sent to clients on connect
func (k *Keypair) PublicKey() []byte {
	out := make([]byte, len(k.public))
	copy(out, k.public)
	return out
}

// Reveal opens a sealed vote
func (k *Keypair) Reveal(vote domain.SecretVote) (string, domain.Choice, error) {
	if vote.IsZero() || len(vote.Nonce) != chacha20poly1305.NonceSize {
		return "", "", ErrMalformedVote
	}

	shared, err := curve25519.X25519(k.private[:], vote.ClientPublicKey)
	if err != nil {
		return "", "", ErrInvalidKey
	}

	aead, err := newAEAD(shared, vote.ClientPublicKey)
	if err != nil {
		return "", "", err
	}

	plaintext, err := aead.Open(nil, vote.Nonce, vote.Ciphertext, vote.ClientPublicKey)
	if err != nil {
		return "", "", fmt.Errorf("open vote: %w", err)
	}
	defer clear(plaintext)

	return parsePlaintext(string(plaintext))
}

// Seal encrypts a choice for the server key. Clients call this; the server
// itself never does.
func Seal(serverPublic []byte, playerID string, choice domain.Choice) (domain.SecretVote, error) {
	if !choice.Valid() {
		return domain.SecretVote{}, ErrInvalidPlaintext
	}
	if len(serverPublic) != curve25519.PointSize {
		return domain.SecretVote{}, ErrInvalidKey
	}

	var ephemeral [curve25519.ScalarSize]byte
	if _, err := rand.Read(ephemeral[:]); err != nil {
		return domain.SecretVote{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	defer clear(ephemeral[:])

	clientPublic, err := curve25519.X25519(ephemeral[:], curve25519.Basepoint)
	if err != nil {
		return domain.SecretVote{}, fmt.Errorf("derive ephemeral public key: %w", err)
	}

	shared, err := curve25519.X25519(ephemeral[:], serverPublic)
	if err != nil {
		return domain.SecretVote{}, ErrInvalidKey
	}

	aead, err := newAEAD(shared, clientPublic)
	if err != nil {
		return domain.SecretVote{}, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return domain.SecretVote{}, fmt.Errorf("generate nonce: %w", err)
	}

	plaintext := []byte(playerID + ":" + string(choice))
	return domain.SecretVote{
		Ciphertext:      aead.Seal(nil, nonce, plaintext, clientPublic),
		ClientPublicKey: clientPublic,
		Nonce:           nonce,
	}, nil
}

func newAEAD(shared, salt []byte) (cipher.AEAD, error) {
	defer clear(shared)

	key, err := hkdf.Key(sha256.New, shared, salt, keyInfo, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer clear(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return aead, nil
}

func parsePlaintext(s string) (string, domain.Choice, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 {
		return "", "", ErrInvalidPlaintext
	}

	choice := domain.Choice(s[idx+1:])
	if !choice.Valid() {
		return "", "", ErrInvalidPlaintext
	}

	return s[:idx], choice, nil
}
