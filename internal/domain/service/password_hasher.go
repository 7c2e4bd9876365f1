// Package service defines interfaces for core, stateless domain logic and for
// the infrastructure the use cases drive.
package service

// PasswordHasher hashes passwords and verifies submitted credentials against
// a stored hash. Implementations must use an adaptive hash.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check reports whether password matches hash. It never errors; a malformed
	// hash is simply a mismatch.
	Check(password, hash string) bool
}
