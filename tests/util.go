package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/attendly/core/attendance"
)

// JPEG encodes a w x h image filled with c.
func JPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("JPEG() failed: %v", err)
	}
	return buf.Bytes()
}

// Token returns a backend access token for the user with the given role.
// The signature is not checked by the app, so any key does.
func Token(t *testing.T, userID int, role string, expiresIn ...time.Duration) string {
	t.Helper()
	exp := 7 * 24 * time.Hour
	if len(expiresIn) > 0 {
		exp = expiresIn[0]
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":             userID,
		"role":            role,
		"organization_id": 1,
		"iat":             now.Unix(),
		"exp":             now.Add(exp).Unix(),
	})
	ss, err := token.SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	return ss
}

// Session returns an active session starting now.
func Session(id int, title string, records ...attendance.Record) attendance.Session {
	return attendance.Session{
		ID:              id,
		Title:           title,
		StartTime:       attendance.NewTime(time.Now().Add(-10 * time.Minute).Truncate(time.Second)),
		DurationMinutes: 60,
		Status:          attendance.StatusActive,
		Records:         records,
	}
}
