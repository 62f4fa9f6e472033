// Package validation provides input validation for verification requests.
package validation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/mod/semver"
)

// Long solc version form: 0.8.19+commit.7dd6d404, optionally v-prefixed.
var solcLongVersionRegex = regexp.MustCompile(`^v?\d+\.\d+\.\d+\+commit\.[0-9a-f]{8}$`)

// ValidateAddress validates an EVM contract address.
func ValidateAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be 0x followed by 40 hex characters")
	}
	return nil
}

// NormalizeAddress returns the EIP-55 checksummed form of an address.
// Stored matches and lookups both go through this so casing never causes a
// miss.
func NormalizeAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidateChainID validates a decimal chain id string.
func ValidateChainID(chainID string) error {
	if chainID == "" {
		return errors.New("chain ID cannot be empty")
	}
	n, err := strconv.ParseInt(chainID, 10, 64)
	if err != nil {
		return errors.New("chain ID must be a decimal number")
	}
	if n <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateCompilerVersion validates a solc version, either the long form with
// a commit hash or a bare semver release.
func ValidateCompilerVersion(v string) error {
	if v == "" {
		return errors.New("compiler version cannot be empty")
	}
	if solcLongVersionRegex.MatchString(v) {
		return nil
	}
	if semver.IsValid("v" + strings.TrimPrefix(v, "v")) {
		return nil
	}
	return errors.New("invalid compiler version: expected X.Y.Z or X.Y.Z+commit.<hash>")
}

// ShortCompilerVersion strips the commit suffix from a long solc version.
func ShortCompilerVersion(v string) string {
	v = strings.TrimPrefix(v, "v")
	if i := strings.Index(v, "+"); i >= 0 {
		return v[:i]
	}
	return v
}

// CompareCompilerVersions compares two compiler versions by their release
// part. Returns -1, 0 or 1.
func CompareCompilerVersions(a, b string) int {
	return semver.Compare("v"+ShortCompilerVersion(a), "v"+ShortCompilerVersion(b))
}
