/*
Package randx provides functions for generating cryptographically secure random identifiers.

It is primarily used to generate fixed-length room codes drawn from the
uppercase alphanumeric alphabet, and UUID event IDs for channel messages.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// RoomCodeChars defines the character set used for room codes (A-Z, 0-9).
	RoomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// RoomCodeCharsLen is the total number of characters in the room code character set (36).
	RoomCodeCharsLen = int64(len(RoomCodeChars))

	// RoomCodeLength is the fixed length required for a generated room code.
	RoomCodeLength = 6
)

// RoomCode generates a candidate room code of RoomCodeLength symbols, each drawn
// independently and uniformly from RoomCodeChars using crypto/rand.
// Uniqueness against existing rooms is the caller's responsibility.
func RoomCode() (string, error) {
	result := make([]byte, RoomCodeLength)

	for i := 0; i < RoomCodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(RoomCodeCharsLen))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room code: %v", err)
		}

		result[i] = RoomCodeChars[num.Int64()]
	}

	return string(result), nil
}

// EventID generates a standard UUID v4 string to serve as a unique identifier for a channel event.
func EventID() string {
	return uuid.New().String()
}

// IsValidRoomCode checks if the given string is a valid room code after
// upper-casing: length equals RoomCodeLength and all characters belong to RoomCodeChars.
func IsValidRoomCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))

	if len(code) != RoomCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(RoomCodeChars, char) {
			return false
		}
	}

	return true
}

// NormalizeRoomCode returns the storage form of a room code: trimmed and upper-cased.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
