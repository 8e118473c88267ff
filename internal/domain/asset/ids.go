package asset

import "regexp"

var (
	reAccountID = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)
	reAssetID   = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)
)

// ValidAccountID reports whether s may name an account. Storage keys join
// ids with '/', so it is never allowed.
func ValidAccountID(s string) bool { return reAccountID.MatchString(s) }

func ValidAssetID(s string) bool { return reAssetID.MatchString(s) }
