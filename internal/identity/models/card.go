package models

import (
	"errors"
	"regexp"
	"strings"
)

// CardUID is an NFC card UID in upper-case hex.
type CardUID string

func (c CardUID) String() string { return string(c) }

var cardUIDPattern = regexp.MustCompile(`^[0-9A-F]{8,16}$`)

var ErrInvalidCardUID = errors.New("card uid must be 8-16 hex characters")

// ParseCardUID normalizes raw to upper case and checks it is 8-16 hex digits.
func ParseCardUID(raw string) (CardUID, error) {
	uid := strings.ToUpper(strings.TrimSpace(raw))
	if !cardUIDPattern.MatchString(uid) {
		return "", ErrInvalidCardUID
	}
	return CardUID(uid), nil
}

// CardType is the chip family inferred from the UID.
type CardType string

const (
	CardMifareClassic    CardType = "MIFARE Classic"
	CardMifareUltralight CardType = "MIFARE Ultralight"
	CardMifareDESFire    CardType = "MIFARE DESFire"
	CardUnknown          CardType = "Unknown"
)

// Type infers the chip family from UID length and manufacturer prefix.
func (c CardUID) Type() CardType {
	switch {
	case len(c) == 14 && strings.HasPrefix(string(c), "04"):
		return CardMifareClassic
	case len(c) == 8:
		return CardMifareUltralight
	case len(c) == 16:
		return CardMifareDESFire
	default:
		return CardUnknown
	}
}

type CardStatus string

const (
	CardActive   CardStatus = "active"
	CardInactive CardStatus = "inactive"
)
