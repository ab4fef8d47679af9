// Package hexutil holds the small conversions the hex view needs.
package hexutil

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotANumber is returned by ParseOffset for malformed input.
var ErrNotANumber = errors.New("not a decimal or hexadecimal number")

// HexValue converts a hex digit to its value. Any other byte is returned
// unchanged.
func HexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return c
}

func IsHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func IsDecDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsPrint reports whether c is shown as itself in the ASCII column.
func IsPrint(c byte) bool {
	return c >= 0x20 && c < 0x7F
}

// UpdateNibble replaces one nibble of data with the hex digit c. Nibble 0 is
// the high nibble. Invalid nibbles and non-hex digits leave data unchanged.
func UpdateNibble(nibble int, c, data byte) byte {
	if nibble < 0 || nibble > 1 || !IsHexDigit(c) {
		return data
	}
	shift := uint(1-nibble) * 4
	return data&^(0x0F<<shift) | HexValue(c)<<shift
}

// IsHexString reports whether s is a non-empty run of hex digits with an
// optional 0x prefix.
func IsHexString(s string) bool {
	s = trimHexPrefix(s)
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		return r > 0x7F || !IsHexDigit(byte(r))
	}) < 0
}

// IsDecString reports whether s is a non-empty run of decimal digits.
func IsDecString(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	}) < 0
}

// ParseOffset reads a decimal offset, falling back to hexadecimal when s has
// a 0x prefix or contains hex letters.
func ParseOffset(s string) (uint64, error) {
	switch {
	case IsDecString(s):
		return strconv.ParseUint(s, 10, 64)
	case IsHexString(s):
		return strconv.ParseUint(trimHexPrefix(s), 16, 64)
	}
	return 0, ErrNotANumber
}

// ParseHex and ParseDec read go-to prompt input in the respective mode.
func ParseHex(s string) (uint64, error) {
	if !IsHexString(s) {
		return 0, ErrNotANumber
	}
	return strconv.ParseUint(trimHexPrefix(s), 16, 64)
}

func ParseDec(s string) (uint64, error) {
	if !IsDecString(s) {
		return 0, ErrNotANumber
	}
	return strconv.ParseUint(s, 10, 64)
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
