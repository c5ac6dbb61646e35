package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashParams returns the hex SHA-256 of the canonical JSON encoding of
// params: object keys sorted, no insignificant whitespace. encoding/json
// already sorts map keys at every nesting level and emits compact output,
// so the hash is invariant under reordering of the input map.
//
// Unencodable params hash to the literal "error" so the record still
// carries a value.
func HashParams(params map[string]interface{}) string {
	if params == nil {
		params = map[string]interface{}{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "error"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
