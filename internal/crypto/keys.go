package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id для деривации ключа подписи cookie
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
)

// saltContext keeps keys derived for different organizations independent
// even when deployments reuse the same shared secret.
const saltContext = "cookie-signing:"

// DeriveSigningKey derives the per-organization HMAC key used to sign
// session cookies from the organization's configured shared secret.
// Derivation is deterministic: the server can be restarted without
// invalidating cookies issued before.
func DeriveSigningKey(secret, orgSlug string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	if orgSlug == "" {
		return nil, fmt.Errorf("organization slug cannot be empty")
	}

	salt := []byte(saltContext + orgSlug)
	key := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)
	return key, nil
}
