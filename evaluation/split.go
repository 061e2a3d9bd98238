package evaluation

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strings"
)

const bucketSize = 10000

// Split is a percentage-rollout configuration. Distribution is an ordered
// list of variation groups, each a list of half-open [low, high) ranges over
// the 0-9999 bucket space.
type Split struct {
	Distribution [][][]int `json:"distribution"`
	BucketBy     string    `json:"bucketBy"`
	Salt         string    `json:"salt"`
}

// FindIndex buckets the user and returns the index of the first distribution
// group covering the bucket. No group covering the bucket means no hit, which
// is how held-back rollout percentages behave.
func (s *Split) FindIndex(user *User, toggleKey string) HitResult {
	hashKey := user.Key
	if strings.TrimSpace(s.BucketBy) != "" {
		if !user.ContainAttr(s.BucketBy) {
			return HitResult{
				Hit:    false,
				Reason: fmt.Sprintf("Warning: User with key %s does not have attribute name %s", user.Key, s.BucketBy),
			}
		}
		hashKey = user.Attr(s.BucketBy)
	}

	group := s.group(hashBucket(hashKey, s.hashSalt(toggleKey)))
	if group == nil {
		return HitResult{Hit: false}
	}
	return HitResult{
		Hit:    true,
		Index:  group,
		Reason: fmt.Sprintf("Selected %d percentage group", *group),
	}
}

func (s *Split) group(bucket int) *int {
	for i, groups := range s.Distribution {
		for _, r := range groups {
			if len(r) == 2 && bucket >= r[0] && bucket < r[1] {
				idx := i
				return &idx
			}
		}
	}
	return nil
}

func (s *Split) hashSalt(toggleKey string) string {
	if strings.TrimSpace(s.Salt) != "" {
		return s.Salt
	}
	return toggleKey
}

// hashBucket maps (key, salt) deterministically into [0, bucketSize). The
// last 4 bytes of the SHA1 digest are taken as an unsigned big-endian 32-bit
// integer and reduced mod bucketSize; clients and the server must agree on
// this derivation bit for bit.
func hashBucket(hashKey, salt string) int {
	digest := sha1.Sum([]byte(hashKey + salt))
	return int(binary.BigEndian.Uint32(digest[len(digest)-4:]) % bucketSize)
}
