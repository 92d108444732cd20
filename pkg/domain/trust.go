package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrustClaims is the payload of a signed device-trust token. It asserts that
// the device with the embedded fingerprint previously completed primary
// authentication. It carries no authorization by itself; it only allows
// skipping the secondary challenge.
type TrustClaims struct {
	UserID      uuid.UUID `json:"sub"`
	Fingerprint string    `json:"fph"`
	IssuedAt    time.Time `json:"iat"`
}
