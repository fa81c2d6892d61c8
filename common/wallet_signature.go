package common

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	signatureLength = 65
	personalPrefix  = "\x19Ethereum Signed Message:\n"
	maxMessageSize  = 4096
)

// VerifySignature checks that signature is an EIP-191 personal_sign signature of
// message produced by the key controlling address.
// An empty signature is malformed input, never a pass.
func VerifySignature(address, message, signature string) (bool, error) {
	want, err := NormalizeWalletAddress(address)
	if err != nil {
		return false, err
	}
	if message == "" || len(message) > maxMessageSize {
		return false, Malformed("message must be 1..%d bytes", maxMessageSize)
	}
	sig, err := decodeSignature(signature)
	if err != nil {
		return false, err
	}

	signer, err := RecoverSigner(PersonalMessageHash(message), sig)
	if err != nil {
		return false, err
	}
	if signer != want {
		return false, errors.Wrapf(ErrInvalidSignature, "recovered signer %s", signer)
	}
	return true, nil
}

// PersonalMessageHash returns keccak256("\x19Ethereum Signed Message:\n" + len + message).
func PersonalMessageHash(message string) []byte {
	return Keccak256([]byte(personalPrefix + strconv.Itoa(len(message)) + message))
}

// Keccak256 legacy keccak as used by Ethereum
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// RecoverSigner recovers the lower-cased address that produced the 65-byte
// [R || S || V] signature over hash.
func RecoverSigner(hash, sig []byte) (string, error) {
	if len(sig) != signatureLength {
		return "", Malformed("signature must be %d bytes", signatureLength)
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", Malformed("invalid signature recovery id %d", sig[64])
	}

	// btcec compact layout: [27 + recid][R][S]
	compact := make([]byte, signatureLength)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return "", errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return PubKeyToAddress(pub), nil
}

// PubKeyToAddress derives the lower-cased 0x address of a secp256k1 public key.
func PubKeyToAddress(pub *btcec.PublicKey) string {
	raw := pub.SerializeUncompressed()
	return "0x" + hex.EncodeToString(Keccak256(raw[1:])[12:])
}

func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, Malformed("signature is required")
	}
	signature = strings.TrimPrefix(strings.TrimPrefix(signature, "0x"), "0X")
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return nil, Malformed("signature is not hex")
	}
	if len(sig) != signatureLength {
		return nil, Malformed("signature must be %d bytes", signatureLength)
	}
	return sig, nil
}

// SignPersonalMessage signs message with key in personal_sign layout, returning 0x-hex [R || S || V].
func SignPersonalMessage(key *btcec.PrivateKey, message string) (string, error) {
	compact := ecdsa.SignCompact(key, PersonalMessageHash(message), false)
	sig := make([]byte, signatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig), nil
}
