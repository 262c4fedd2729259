package cdc

import (
	"crypto/sha1" //nolint:gosec // G505: the CDC protocol mandates SHA-1 password digests
	"encoding/hex"
)

// EncodeAuth builds the authentication token the CDC server expects as the
// first bytes on a connection: the ASCII-hex encoding of "<user>:" followed
// immediately by the lowercase hex SHA-1 digest of the password, with no
// separator. The same line format is used in server-side credential files,
// which is why cmd/cdc-users prints it verbatim.
func EncodeAuth(user, password string) string {
	digest := sha1.Sum([]byte(password)) //nolint:gosec // G401: protocol requirement
	return hex.EncodeToString([]byte(user+":")) + hex.EncodeToString(digest[:])
}
