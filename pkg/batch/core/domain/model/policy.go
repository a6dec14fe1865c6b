package model

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what the bulk loader does with a record whose Id already exists.
type DuplicatePolicy string

const (
	// DuplicatePolicyFail inserts plainly; a duplicate Id aborts the batch.
	DuplicatePolicyFail DuplicatePolicy = "fail"
	// DuplicatePolicyUpsert overwrites Firstname and Surname of the existing row.
	DuplicatePolicyUpsert DuplicatePolicy = "upsert"
	// DuplicatePolicySkip keeps the existing row untouched.
	DuplicatePolicySkip DuplicatePolicy = "skip"
)

// ParseDuplicatePolicy parses a policy name case-insensitively. Empty means upsert.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DuplicatePolicyUpsert, nil
	case DuplicatePolicyFail, DuplicatePolicyUpsert, DuplicatePolicySkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy '%s'", s)
	}
}
