package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/cryptoutil"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

func decodeKey(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != cryptoutil.KeySize {
		return nil, fmt.Errorf("encryption key must decode to %d bytes, got %d", cryptoutil.KeySize, len(key))
	}
	return key, nil
}

func readRandom(buf []byte) (int, error) {
	return rand.Read(buf)
}

// credentialTokenSource reads the stored Google Credential on every Token
// call; oauth2.ReuseTokenSource caches the result until the access token's
// reported expiry, at which point the oauth2 transport refreshes it
// through cfg's token endpoint and this source is consulted again only
// for the refresh token itself.
type credentialTokenSource struct {
	ctx         context.Context
	cfg         *oauth2.Config
	credentials interfaces.CredentialsRepository
	box         *cryptoutil.Box
}

func (s *credentialTokenSource) Token() (*oauth2.Token, error) {
	cred, err := s.credentials.Get(s.ctx, types.CredentialGoogle, "")
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, polyerrors.NewAuth(fmt.Errorf("no stored Google Drive credential; complete the OAuth consent flow first"))
	}

	plaintext, err := s.box.Open(cred.CiphertextB64)
	if err != nil {
		return nil, fmt.Errorf("decrypt google credential: %w", err)
	}
	var payload types.GoogleCredentialPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("decode google credential payload: %w", err)
	}

	base := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Expiry:       payload.Expiry,
	}
	return s.cfg.TokenSource(s.ctx, base).Token()
}
