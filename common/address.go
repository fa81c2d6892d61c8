package common

import (
	"regexp"
	"strings"
)

var (
	walletAddressRegexp    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	externalIdentityRegexp = regexp.MustCompile(`^[a-z][a-z0-9_]{1,15}:[0-9A-Za-z_-]{1,64}$`)
)

// IsWalletAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsWalletAddress(s string) bool {
	return walletAddressRegexp.MatchString(strings.TrimSpace(s))
}

// NormalizeWalletAddress trims and lower-cases a wallet address.
func NormalizeWalletAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !walletAddressRegexp.MatchString(address) {
		return "", Malformed("invalid wallet address %q", address)
	}
	return strings.ToLower(address), nil
}

// NormalizeContractAddress returns the lower-cased contract address; empty stays empty.
func NormalizeContractAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", nil
	}
	if !walletAddressRegexp.MatchString(address) {
		return "", Malformed("invalid contract address %q", address)
	}
	return strings.ToLower(address), nil
}

// NormalizeIdentity canonicalises an identity key: a wallet address (lower-cased)
// or a namespaced external id such as "fid:1234".
func NormalizeIdentity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrUnauthenticated
	}
	if walletAddressRegexp.MatchString(identity) {
		return strings.ToLower(identity), nil
	}
	// namespace tag is case-insensitive, the id part is kept verbatim
	idx := strings.IndexByte(identity, ':')
	if idx <= 0 {
		return "", Malformed("invalid identity %q", identity)
	}
	key := strings.ToLower(identity[:idx]) + identity[idx:]
	if !externalIdentityRegexp.MatchString(key) {
		return "", Malformed("invalid identity %q", identity)
	}
	return key, nil
}
