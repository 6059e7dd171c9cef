package account

import (
	"fmt"
	"unicode"
)

const (
	MinNameLen        = 3
	MaxNameLen        = 32
	MaxDisplayNameLen = 128
)

// ValidateName проверяет имя учетной записи
func ValidateName(name string) error {
	if len(name) < MinNameLen {
		return fmt.Errorf("name must be at least %d characters", MinNameLen)
	}

	if len(name) > MaxNameLen {
		return fmt.Errorf("name must be at most %d characters", MaxNameLen)
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return fmt.Errorf("name can only contain letters, digits, '_', '-', '.'")
		}
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя
func ValidateDisplayName(name string) error {
	if len([]rune(name)) > MaxDisplayNameLen {
		return fmt.Errorf("display name must be at most %d characters", MaxDisplayNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("display name must not contain control characters")
		}
	}
	return nil
}
