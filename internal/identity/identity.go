// Package identity implements the pipeline's deterministic content-hash
// identities: Peer and BaseAttrs hash IDs, and the three detector-specific
// detection_id schemes. These are pure functions of their inputs so that
// restarts and replays never produce duplicate rows.
package identity

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// uuidFromSHA1Hex32 mirrors the original's uuid.UUID(hashlib.sha1(...).hexdigest()[:32]):
// take the first 32 hex characters of a SHA1 digest and parse them directly
// as the 16 bytes of a UUID, with no version/variant bits imposed.
func uuidFromSHA1Hex32(s string) string {
	digest := sha1.Sum([]byte(s))
	hexDigest := hex.EncodeToString(digest[:])[:32]
	raw, _ := hex.DecodeString(hexDigest)
	id, err := uuid.FromBytes(raw)
	if err != nil {
		// 16 decoded bytes always parse; this path is unreachable.
		panic(fmt.Sprintf("identity: malformed UUID bytes from %q: %v", s, err))
	}
	return id.String()
}

// PeerHashID is deterministic_peer_uuid(peer, peer_asn): stable across
// restarts for the same (peer_addr, peer_asn) pair.
func PeerHashID(peerAddr string, peerASN int64) string {
	key := fmt.Sprintf("%s|%d", peerAddr, peerASN)
	return uuidFromSHA1Hex32(key)
}

// BaseAttrHashID is the SHA1 hash of the path attribute bundle, matching
// get_or_create_base_attrs's attr_string = f"{as_path}|{origin_as}|{next_hop}".
// asPath must already have originAS appended as its last element.
func BaseAttrHashID(asPath []int64, originAS int64, nextHop string) string {
	key := fmt.Sprintf("%s|%d|%s", formatASPath(asPath), originAS, nextHop)
	return uuidFromSHA1Hex32(key)
}

// formatASPath reproduces Python's str([65000, 65001]) formatting of an
// int list, since the original hashes the list's repr, not a custom join.
func formatASPath(path []int64) string {
	parts := make([]string, len(path))
	for i, asn := range path {
		parts[i] = strconv.FormatInt(asn, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func NewRandomUUID() string {
	return uuid.New().String()
}

// HeuristicDetectionID implements spec.md §4.3.
func HeuristicDetectionID(windowStart time.Time, prefix string, originAS int64) string {
	data := fmt.Sprintf("heuristic_%s_%s_%d", isoFormat(windowStart), prefix, originAS)
	sum := sha256.Sum256([]byte(data))
	return "heur_" + hex.EncodeToString(sum[:])[:32]
}

// MLDetectionID implements spec.md §4.4.
func MLDetectionID(windowStart time.Time, prefix string, originAS int64) string {
	data := fmt.Sprintf("%s|%s|%d", isoFormat(windowStart), prefix, originAS)
	sum := sha256.Sum256([]byte(data))
	return "ml_" + hex.EncodeToString(sum[:])[:16]
}

// RPKIDetectionID implements spec.md §4.5: human-readable, no hash.
func RPKIDetectionID(windowStart time.Time, prefix string, originAS int64) string {
	return fmt.Sprintf("rpki_%s_%s_%d", windowStart.UTC().Format("20060102150405"), prefix, originAS)
}

// isoFormat matches Python's datetime.isoformat() for a naive (no tzinfo)
// UTC timestamp: "2024-01-02T03:04:05" with microsecond precision only
// when non-zero.
func isoFormat(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05.000000")
}
