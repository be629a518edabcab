package types

import "time"

// SettingValueType is the declared type of a Setting value.
type SettingValueType string

const (
	SettingTypeString SettingValueType = "string"
	SettingTypeInt    SettingValueType = "int"
	SettingTypeFloat  SettingValueType = "float"
	SettingTypeBool   SettingValueType = "bool"
)

// Setting is a typed key/value configuration row (spec §3, §6).
type Setting struct {
	Key             string           `json:"key" gorm:"primaryKey"`
	Value           string           `json:"value"`
	Type            SettingValueType `json:"type"`
	Min             *float64         `json:"min,omitempty"`
	Max             *float64         `json:"max,omitempty"`
	Default         string           `json:"default"`
	RestartRequired bool             `json:"restart_required"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CredentialProvider identifies which external system a Credential secures.
type CredentialProvider string

const (
	CredentialGoogle CredentialProvider = "GOOGLE"
	CredentialPHPBB  CredentialProvider = "PHPBB"
)

// Credential stores encrypted tokens/cookies for an external collaborator
// (spec §3 Credentials). CiphertextB64 is base64(nonce || ciphertext) as
// produced by internal/cryptoutil.
type Credential struct {
	ID            string             `json:"id" gorm:"primaryKey"`
	Provider      CredentialProvider `json:"provider" gorm:"index"`
	RefID         string             `json:"ref_id" gorm:"index"` // e.g. ImportSource.ID
	CiphertextB64 string             `json:"-"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// GoogleCredentialPayload is the plaintext JSON encrypted inside a Google
// Credential's CiphertextB64.
type GoogleCredentialPayload struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// PHPBBCredentialPayload is the plaintext JSON encrypted inside a PHPBB
// Credential's CiphertextB64.
type PHPBBCredentialPayload struct {
	Username    string            `json:"username"`
	Password    string            `json:"password"`
	SessionID   string            `json:"session_id,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
	SessionExpiry time.Time       `json:"session_expiry,omitempty"`
}
