package device

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 64

var nameRegex = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)*$`)

// ValidateDevice checks a device in isolation. Collisions with other devices
// are the registry's concern.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if d.Pin <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPin, d.Pin)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	if d.PowerWatts < 0 {
		return fmt.Errorf("%w: negative power %v", ErrInvalidDevice, d.PowerWatts)
	}
	if strings.TrimSpace(d.Room) == "" {
		return fmt.Errorf("%w: room is required", ErrInvalidDevice)
	}
	for _, a := range d.Aliases {
		if NormalizeAlias(a) == "" {
			return fmt.Errorf("%w: empty alias", ErrInvalidDevice)
		}
	}
	return nil
}

// ValidateName checks that name is a lowercase snake_case identifier.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must be lowercase snake_case", ErrInvalidName, name)
	}
	return nil
}

// NormalizeAlias lowercases an alias and reduces it to single-space
// separated words. Underscores and punctuation separate words.
func NormalizeAlias(s string) string {
	return strings.Join(tokenize(s), " ")
}

func spaced(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
