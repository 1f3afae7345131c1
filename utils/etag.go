package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag produces a strong ETag for a record from its id and last
// update time.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d", id.Hex(), updatedAt.UnixNano())))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// GenerateListETag produces a strong ETag for a list response. Membership is
// part of the hash: records leave these queues as their normal lifecycle
// (accepted, claimed, dismissed), so a list can change without any surviving
// record's updated_at moving.
func GenerateListETag(ids []primitive.ObjectID, latest time.Time) string {
	h := sha1.New()
	for _, id := range ids {
		fmt.Fprintf(h, "%s;", id.Hex())
	}
	fmt.Fprintf(h, "%d:%d", len(ids), latest.UnixNano())
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
