package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewUUID7 returns a time ordered id. Mount records sort by it, newest last.
func NewUUID7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid v7: %w", err)
	}
	return id.String(), nil
}
