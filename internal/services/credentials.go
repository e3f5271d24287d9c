package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

var ErrCredentialsAbsent = errors.New("publishing credentials absent")

type CredentialState string

const (
	CredentialsValid              CredentialState = "valid"
	CredentialsExpiredRefreshable CredentialState = "expired-refreshable"
	CredentialsAbsent             CredentialState = "absent"
)

// CredentialRecord is the persisted OAuth token for the publishing account.
type CredentialRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// State classifies the record at now. A nil record is absent.
func (r *CredentialRecord) State(now time.Time) CredentialState {
	switch {
	case r == nil:
		return CredentialsAbsent
	case r.AccessToken != "" && (r.Expiry.IsZero() || now.Before(r.Expiry)):
		return CredentialsValid
	case r.RefreshToken != "":
		return CredentialsExpiredRefreshable
	default:
		return CredentialsAbsent
	}
}

func (r *CredentialRecord) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.Expiry,
	}
}

// CredentialFromToken builds a record from a (possibly refreshed) token,
// keeping the previous refresh token when the server did not issue a new one.
func CredentialFromToken(tok *oauth2.Token, prev *CredentialRecord) *CredentialRecord {
	rec := &CredentialRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if prev != nil {
		if rec.RefreshToken == "" {
			rec.RefreshToken = prev.RefreshToken
		}
		rec.Scopes = prev.Scopes
	}
	return rec
}

// LoadCredentials reads the token file. A missing file is ErrCredentialsAbsent.
func LoadCredentials(path string) (*CredentialRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrCredentialsAbsent, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var rec CredentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	return &rec, nil
}

// SaveCredentials writes the record with owner-only permissions, replacing
// the previous file atomically.
func SaveCredentials(path string, rec *CredentialRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}
