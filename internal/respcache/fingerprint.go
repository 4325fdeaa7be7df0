package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"model-router/internal/common/errors"
)

// Fingerprint hashes a canonical serialization of the request so that
// structurally identical requests always produce the same cache key,
// regardless of field order. The request is decoded and re-encoded because
// encoding/json writes map keys in sorted order.
func Fingerprint(request json.RawMessage) (string, error) {
	var decoded interface{}
	if err := json.Unmarshal(request, &decoded); err != nil {
		return "", errors.ValidationError("request is not valid JSON")
	}

	canonical, err := json.Marshal(decoded)
	if err != nil {
		return "", errors.InternalError("failed to canonicalize request", err)
	}

	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:]), nil
}
