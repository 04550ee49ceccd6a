package rpc

import (
	"encoding/hex"
	"encoding/json"

	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/google/uuid"
)

type RequestType string

type Payload struct {
	Type  RequestType     `json:"type"`  // Payload type name
	Data  json.RawMessage `json:"data"`  // Payload type-specific data
	Nonce string          `json:"nonce"` // Identical payloads (like, unlike, like) would otherwise be rejected by the mempool cache
}

type SignedPayload struct {
	Payload   `json:"payload"`
	Principal social.Identity `json:"principal"`  // Who is making the request
	PublicKey string          `json:"public_key"` // Hex-encoded Ed25519 public key. The principal is derived from it.
	Signature string          `json:"signature"`  // Hex-encoded Ed25519 signature of the signing bytes
}

// Signer is implemented by an active session.
type Signer interface {
	Identity() social.Identity
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

func wrap(payloadType RequestType, payload any) (Payload, error) {
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Type:  payloadType,
		Data:  marshalled,
		Nonce: uuid.NewString(),
	}, nil
}

// SigningBytes covers the type and nonce as well as the data, so a signature cannot be replayed onto a different
// request type.
func (p Payload) SigningBytes() []byte {
	buf := make([]byte, 0, len(p.Type)+len(p.Nonce)+len(p.Data)+2)
	buf = append(buf, p.Type...)
	buf = append(buf, 0)
	buf = append(buf, p.Nonce...)
	buf = append(buf, 0)
	buf = append(buf, p.Data...)
	return buf
}

func sign(payload Payload, signer Signer) (SignedPayload, error) {
	signature, err := signer.Sign(payload.SigningBytes())
	if err != nil {
		return SignedPayload{}, err
	}

	return SignedPayload{
		Payload:   payload,
		Principal: signer.Identity(),
		PublicKey: hex.EncodeToString(signer.PublicKey()),
		Signature: hex.EncodeToString(signature),
	}, nil
}

// Verify checks the signature using the supplied verification function, which is expected to check the signature
// against the public key embedded in the payload.
func (p *SignedPayload) Verify(verify func(publicKey, msg, signature []byte) bool) (bool, error) {
	publicKey, err := hex.DecodeString(p.PublicKey)
	if err != nil {
		return false, err
	}

	signature, err := hex.DecodeString(p.Signature)
	if err != nil {
		return false, err
	}

	return verify(publicKey, p.SigningBytes(), signature), nil
}
