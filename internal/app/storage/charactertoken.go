package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/ErikKalkoken/evesync/internal/app"
)

type characterTokenRow struct {
	ID           int64     `db:"id"`
	AccessToken  string    `db:"access_token"`
	CharacterID  int64     `db:"character_id"`
	ExpiresAt    time.Time `db:"expires_at"`
	RefreshToken string    `db:"refresh_token"`
	Scopes       string    `db:"scopes"`
	TokenType    string    `db:"token_type"`
}

func characterTokenFromDBModel(r characterTokenRow) (*app.CharacterToken, error) {
	var scopes []string
	if err := json.Unmarshal([]byte(r.Scopes), &scopes); err != nil {
		return nil, fmt.Errorf("scopes of token for character %d: %w", r.CharacterID, err)
	}
	t := &app.CharacterToken{
		AccessToken:  r.AccessToken,
		CharacterID:  int32(r.CharacterID),
		ExpiresAt:    r.ExpiresAt,
		ID:           r.ID,
		RefreshToken: r.RefreshToken,
		Scopes:       scopes,
		TokenType:    r.TokenType,
	}
	return t, nil
}

func (st *Storage) GetCharacterToken(ctx context.Context, characterID int32) (*app.CharacterToken, error) {
	var r characterTokenRow
	err := st.dbRO.GetContext(ctx, &r, `SELECT * FROM character_tokens WHERE character_id = ?;`, characterID)
	if err != nil {
		return nil, fmt.Errorf("get token for character %d: %w", characterID, convertGetError(err))
	}
	return characterTokenFromDBModel(r)
}

type UpdateOrCreateCharacterTokenParams struct {
	AccessToken  string
	CharacterID  int32
	ExpiresAt    time.Time
	RefreshToken string
	Scopes       []string
	TokenType    string
}

func UpdateOrCreateCharacterTokenParamsFromToken(o *app.CharacterToken) UpdateOrCreateCharacterTokenParams {
	return UpdateOrCreateCharacterTokenParams{
		AccessToken:  o.AccessToken,
		CharacterID:  o.CharacterID,
		ExpiresAt:    o.ExpiresAt,
		RefreshToken: o.RefreshToken,
		Scopes:       o.Scopes,
		TokenType:    o.TokenType,
	}
}

func (st *Storage) UpdateOrCreateCharacterToken(ctx context.Context, arg UpdateOrCreateCharacterTokenParams) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("updateOrCreateCharacterToken: %d: %w", arg.CharacterID, err)
	}
	if arg.CharacterID == 0 {
		return wrapErr(app.ErrInvalid)
	}
	scopes := slices.Sorted(slices.Values(arg.Scopes))
	if scopes == nil {
		scopes = []string{}
	}
	b, err := json.Marshal(scopes)
	if err != nil {
		return wrapErr(err)
	}
	r := characterTokenRow{
		AccessToken:  arg.AccessToken,
		CharacterID:  int64(arg.CharacterID),
		ExpiresAt:    arg.ExpiresAt.UTC(),
		RefreshToken: arg.RefreshToken,
		Scopes:       string(b),
		TokenType:    arg.TokenType,
	}
	_, err = st.dbRW.NamedExecContext(ctx, `
		INSERT INTO character_tokens (
			access_token, character_id, expires_at, refresh_token, scopes, token_type
		) VALUES (
			:access_token, :character_id, :expires_at, :refresh_token, :scopes, :token_type
		)
		ON CONFLICT (character_id) DO UPDATE SET
			access_token = :access_token,
			expires_at = :expires_at,
			refresh_token = :refresh_token,
			scopes = :scopes,
			token_type = :token_type;`,
		r,
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}
