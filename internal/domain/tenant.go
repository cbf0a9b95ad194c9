package domain

import "fmt"

// MaxTenantLength bounds the tenant (company) name, which doubles as a collection name.
const MaxTenantLength = 255

// ValidateTenant checks that name is usable as a collection name.
func ValidateTenant(name string) error {
	if name == "" {
		return fmt.Errorf("tenant is required: %w", ErrInvalidRequest)
	}
	if len(name) > MaxTenantLength {
		return fmt.Errorf("tenant exceeds %d characters: %w", MaxTenantLength, ErrInvalidRequest)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("tenant %q contains invalid character %q: %w", name, r, ErrInvalidRequest)
		}
	}
	return nil
}
