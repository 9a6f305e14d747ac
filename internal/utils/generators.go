package utils

import "github.com/google/uuid"

func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether id is a well-formed UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
