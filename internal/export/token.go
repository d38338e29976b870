package export

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// Token derives the download token for a job. The signature binds the job id
// and the millisecond expiry, so a token cannot be replayed against another
// job or a refreshed expiry.
func Token(secret string, jobID uint64, expiry time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d|%d", jobID, expiry.UnixMilli())
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// verifyToken checks the presented token against the stored expiry.
func verifyToken(secret string, jobID uint64, expiry time.Time, presented string, now time.Time) error {
	expected := Token(secret, jobID, expiry)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return ErrTokenInvalid
	}
	if now.After(expiry) {
		return ErrTokenExpired
	}
	return nil
}
