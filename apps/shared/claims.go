package shared

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

var (
	// errors
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims are the claims of a backend access token.
// The signature is checked by the backend on every call; the app only reads them to gate and attribute.
type Claims struct {
	Subject        interface{} `json:"sub"` // user ID, a number or a string depending on the issuer
	Role           string      `json:"role"`
	OrganizationID int         `json:"organization_id"`
	Name           string      `json:"name,omitempty"`
	Email          string      `json:"email,omitempty"`
	ExpiresAt      int64       `json:"exp,omitempty"`
	IssuedAt       int64       `json:"iat,omitempty"`

	Raw string `json:"-"` // the token itself, to forward to the backend
}

var _ jwt.Claims = (*Claims)(nil)

// ParseClaims reads the claims of token without verifying its signature, then validates them.
func ParseClaims(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{Raw: token}
	parser := jwt.Parser{UseJSONNumber: true}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if err := claims.Valid(); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims, nil
}

func (c Claims) Valid() error {
	now := jwt.TimeFunc().Unix()
	if c.ExpiresAt != 0 && now > c.ExpiresAt {
		return errors.New("token is expired")
	}
	if c.UserID() == "" {
		return errors.New("token has no subject")
	}
	return nil
}

// UserID is the subject as a string.
func (c Claims) UserID() string {
	switch sub := c.Subject.(type) {
	case nil:
		return ""
	case string:
		return sub
	case json.Number:
		return sub.String()
	case float64:
		return strconv.FormatFloat(sub, 'f', -1, 64)
	default:
		return fmt.Sprint(sub)
	}
}

func (c Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// IsSupervisor is true for the roles allowed to run attendance: admins and supervisors.
func (c Claims) IsSupervisor() bool {
	return c.HasAnyRole(attendance.RoleAdmin, attendance.RoleSupervisor)
}

func (c Claims) Person() core.Person {
	return core.Person{ID: c.UserID(), Name: c.Name, Email: c.Email}
}
