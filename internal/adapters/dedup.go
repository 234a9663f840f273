package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
)

// DedupKey hashes the identifying fields of a transaction. The encoding is a
// JSON array so that field boundaries cannot collide ("ab","c" vs "a","bc").
func DedupKey(userID string, institution domain.Institution, date, description, amount string, txType domain.TransactionType) string {
	payload, _ := json.Marshal([]string{
		userID,
		string(institution),
		date,
		description,
		amount,
		string(txType),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
