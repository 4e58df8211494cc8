package app

import (
	"slices"
	"time"
)

// CharacterToken is an OAuth token for a character in Eve Online.
type CharacterToken struct {
	AccessToken  string
	CharacterID  int32
	ExpiresAt    time.Time
	ID           int64
	RefreshToken string
	Scopes       []string
	TokenType    string
}

// RemainsValid reports whether a token remains valid within a duration.
func (ct CharacterToken) RemainsValid(d time.Duration) bool {
	return ct.ExpiresAt.After(time.Now().Add(d))
}

// HasScopes reports whether a token has all the given scopes.
func (ct CharacterToken) HasScopes(scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(ct.Scopes, s) {
			return false
		}
	}
	return true
}
