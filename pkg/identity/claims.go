package identity

import (
	"encoding/json"
	"strings"

	"github.com/platinummonkey/inkwell/pkg/auth"
)

// DefaultName is used when the provider does not supply a name
const DefaultName = "Anonymous User"

// Claims are the identity claims the resolver uses
type Claims struct {
	Subject       string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
}

// DisplayName picks the best available name
func (c *Claims) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if c.GivenName != "" && c.FamilyName != "" {
		return c.GivenName + " " + c.FamilyName
	}
	if c.FirstName != "" && c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	return DefaultName
}

// NormalizedEmail returns the email claim ready for storage. A missing or
// placeholder address is stored empty.
func (c *Claims) NormalizedEmail() string {
	if auth.IsPlaceholderEmail(c.Email) {
		return ""
	}
	return auth.NormalizeEmail(c.Email)
}

// flexBool accepts both true and "true"; some providers send strings
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = flexBool(strings.EqualFold(s, "true"))
	return nil
}
