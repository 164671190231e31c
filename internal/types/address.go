package types

import "regexp"

var tokenAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidTokenAddress reports whether s looks like a base58 mint address.
func ValidTokenAddress(s string) bool {
	return tokenAddressRe.MatchString(s)
}
