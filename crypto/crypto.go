//Package crypto derives per-phase keys from the PAKE shared secret
//and seals/opens message bodies with XSalsa20-Poly1305. The wire
//body of every encrypted phase is nonce ∥ ciphertext ∥ tag.
package crypto

import (
	crand "crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/nickjhughes/go-wormhole/msg"
)

const (
	//KeySize is the size of the derived phase keys
	KeySize = 32

	//NonceSize is the XSalsa20-Poly1305 nonce size
	NonceSize = 24

	//hkdfLength is the HKDF expansion length. Only the first 32
	//bytes are used; the length is kept at 42 for bit-compatibility
	//with existing peers
	hkdfLength = 42
)

//ErrDecrypt signals an undecryptable body: the key exchange or the
//code was wrong. Clients treat this as terminal
var ErrDecrypt = errors.New("message failed to decrypt")

//Purpose builds the HKDF context string for a side and phase:
//"wormhole:phase:" ∥ SHA256(side) ∥ SHA256(phase wire form)
func Purpose(side string, phase msg.Phase) []byte {
	out := []byte("wormhole:phase:")

	sideSum := sha256.Sum256([]byte(side))
	out = append(out, sideSum[:]...)

	phaseSum := sha256.Sum256([]byte(phase))
	out = append(out, phaseSum[:]...)

	return out
}

//DerivePhaseKey expands the shared secret into the key for one
//side's messages in one phase
func DerivePhaseKey(key []byte, side string, phase msg.Phase) [KeySize]byte {
	r := hkdf.New(sha256.New, key, nil, Purpose(side, phase))

	var expanded [hkdfLength]byte
	if _, err := io.ReadFull(r, expanded[:]); err != nil {
		//Only reachable if the expansion length exceeds HKDF's
		//limit, which 42 does not
		panic(err)
	}

	var out [KeySize]byte
	copy(out[:], expanded[:KeySize])
	return out
}

//Encrypt seals plain under the phase key for (side, phase) with a
//fresh random nonce, returning the wire body
func Encrypt(plain, key []byte, side string, phase msg.Phase) []byte {
	phaseKey := DerivePhaseKey(key, side, phase)

	var nonce [NonceSize]byte
	if _, err := crand.Read(nonce[:]); err != nil {
		panic(err)
	}

	return secretbox.Seal(nonce[:], plain, &nonce, &phaseKey)
}

//Decrypt opens a wire body produced by Encrypt with the same
//(key, side, phase)
func Decrypt(body, key []byte, side string, phase msg.Phase) ([]byte, error) {
	if len(body) < NonceSize {
		return nil, ErrDecrypt
	}

	phaseKey := DerivePhaseKey(key, side, phase)

	var nonce [NonceSize]byte
	copy(nonce[:], body[:NonceSize])

	plain, ok := secretbox.Open(nil, body[NonceSize:], &nonce, &phaseKey)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
