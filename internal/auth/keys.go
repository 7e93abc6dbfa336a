// ABOUTME: Static API key set for clients that send x-api-key instead of a bearer token.
// ABOUTME: Keys come from configuration; comparison is constant time.

package auth

import (
	"crypto/subtle"
	"fmt"
)

// APIKeySet verifies x-api-key values against a fixed list.
// It is immutable after construction and safe for concurrent use.
type APIKeySet struct {
	keys [][]byte
}

// NewAPIKeySet builds a set from configured keys, skipping empty entries.
func NewAPIKeySet(keys []string) *APIKeySet {
	s := &APIKeySet{}
	for _, k := range keys {
		if k != "" {
			s.keys = append(s.keys, []byte(k))
		}
	}
	return s
}

// Verify returns a principal ID naming the matched key's position.
func (s *APIKeySet) Verify(key string) (string, error) {
	match := -1
	for i, k := range s.keys {
		// Every key is compared so timing does not reveal the match position.
		if subtle.ConstantTimeCompare(k, []byte(key)) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return "", ErrInvalidToken
	}
	return fmt.Sprintf("api-key-%d", match+1), nil
}

// Len returns the number of configured keys.
func (s *APIKeySet) Len() int {
	return len(s.keys)
}
