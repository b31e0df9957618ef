package mfa

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/authcore-dev/authcore/model"
	"github.com/authcore-dev/authcore/params"
	"golang.org/x/crypto/bcrypt"
)

// generateBackupCodes mints a fresh code set: the raw codes returned to the
// user exactly once, and the bcrypt hashes that get persisted.
func generateBackupCodes(userID uint) ([]string, []*model.BackupCode, error) {
	raw := make([]string, 0, params.BackupCodeCount)
	hashed := make([]*model.BackupCode, 0, params.BackupCodeCount)
	buf := make([]byte, params.BackupCodeLength/2)
	for i := 0; i < params.BackupCodeCount; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := hex.EncodeToString(buf)
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, err
		}
		raw = append(raw, code)
		hashed = append(hashed, &model.BackupCode{
			UserID:   userID,
			CodeHash: string(hash),
		})
	}
	return raw, hashed, nil
}

func bcryptMatches(hash string, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
