package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// GitHub signs every delivery with sha256 in X-Hub-Signature-256. The legacy
// sha1 header is not read.
var hashFuncs = map[string]func() hash.Hash{
	"sha256": sha256.New,
}

// computeSignature is replaced in tests to count HMAC computations.
var computeSignature = Sign

// supportedAlgorithm reports whether an HMAC algorithm name is known.
func supportedAlgorithm(algorithm string) bool {
	_, ok := hashFuncs[algorithm]
	return ok
}

// Sign computes the signature header value GitHub would send for body:
// "<algorithm>=<hex digest>".
func Sign(algorithm string, body []byte, secret string) (string, error) {
	newHash, ok := hashFuncs[algorithm]
	if !ok {
		return "", fmt.Errorf("unsupported signature algorithm %q", algorithm)
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return algorithm + "=" + hex.EncodeToString(mac.Sum(nil)), nil
}

// signaturesEqual compares two header values in constant time. The time
// taken does not depend on the position of the first differing byte.
func signaturesEqual(expected, received string) bool {
	return hmac.Equal([]byte(expected), []byte(received))
}
