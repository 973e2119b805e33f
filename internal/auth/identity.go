// ABOUTME: Derives the user identity and bearer string from an OAuth token
// ABOUTME: Reads JWT claims without verification; the backend verifies signatures

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Identity is who is signed in
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// idToken returns the OIDC id_token carried by tok, if any
func idToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	if s, ok := tok.Extra("id_token").(string); ok {
		return s
	}
	return ""
}

// bearer picks the credential the backend expects: the ID token when the
// provider issued one, otherwise the access token
func bearer(tok *oauth2.Token) string {
	if id := idToken(tok); id != "" {
		return id
	}
	return tok.AccessToken
}

type identityClaims struct {
	jwt.RegisteredClaims
	UserID            string `json:"user_id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// identityFromCredential reads user id and display name from a JWT. Opaque
// tokens fall back to the login name.
func identityFromCredential(credential, fallback string) Identity {
	id := Identity{UserID: fallback, DisplayName: fallback}

	var claims identityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return id
	}

	// claims name the user, so the login name only stands in for a missing id
	id.DisplayName = ""
	if claims.UserID != "" {
		id.UserID = claims.UserID
	} else if claims.Subject != "" {
		id.UserID = claims.Subject
	}
	for _, name := range []string{claims.Name, claims.Email, claims.PreferredUsername} {
		if name != "" {
			id.DisplayName = name
			break
		}
	}
	if id.DisplayName == "" {
		id.DisplayName = id.UserID
	}
	return id
}
