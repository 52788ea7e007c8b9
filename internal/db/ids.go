package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"gorm.io/gorm"
)

// GenerateID creates a short ID in <prefix>-xxxxx format (5-char hex). The
// space is small; use it only for hand-managed rows such as operators and
// inboxes.
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("db: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:5], nil
}

// UniqueID generates a prefixed ID not yet used in model's table and
// retries once on collision.
func UniqueID(db *gorm.DB, model interface{}, prefix string) (string, error) {
	for range 2 {
		id, err := GenerateID(prefix)
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("db: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("db: failed to generate unique %s ID after retries", prefix)
}
