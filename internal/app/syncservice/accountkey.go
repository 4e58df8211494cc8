package syncservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ErikKalkoken/go-set"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/normalize"
	"github.com/ErikKalkoken/evesync/internal/app/reconcile"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/eveapi"
)

const endpointAPIKeyInfo = "account:APIKeyInfo"

type AccountKeyUpdateParams struct {
	KeyID   int64
	Timeout time.Duration // timeout for the fetch. When zero the policy's timeout is used.
}

// UpdateAccountKey fetches the info for an account key, stores its attributes
// and reconciles the key's characters with the characters reported by the remote API.
//
// Nothing is stored when the remote API reports no key.
func (s *SyncService) UpdateAccountKey(ctx context.Context, arg AccountKeyUpdateParams) (*app.AccountKey, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("UpdateAccountKey: %d: %w", arg.KeyID, err)
	}
	if arg.KeyID == 0 {
		return nil, wrapErr(app.ErrInvalid)
	}
	if s.fetcher == nil {
		return nil, wrapErr(fmt.Errorf("no remote fetcher: %w", app.ErrInvalid))
	}
	key := fmt.Sprintf("UpdateAccountKey-%d-%s", arg.KeyID, arg.Timeout)
	x, err, _ := s.sfg.Do(key, func() (any, error) {
		return s.updateAccountKey(ctx, arg)
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return x.(*app.AccountKey), nil
}

func (s *SyncService) updateAccountKey(ctx context.Context, arg AccountKeyUpdateParams) (*app.AccountKey, error) {
	keyID := arg.KeyID
	logger := newRunLogger("UpdateAccountKey", "keyID", keyID)
	key, err := s.st.GetAccountKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	fetchCtx, cancel := s.withTimeout(ctx, arg.Timeout)
	defer cancel()
	data, err := s.fetcher.Fetch(fetchCtx, endpointAPIKeyInfo, keyParams(key))
	if err != nil {
		return nil, err
	}
	a := normalize.Flatten(data).Map("key")
	if !a.Has("accessMask") {
		return nil, fmt.Errorf("%s: missing key: %w", endpointAPIKeyInfo, app.ErrInvalid)
	}
	params, err := accountKeyParamsFromAttrs(keyID, a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointAPIKeyInfo, err)
	}
	members, err := rows(a, "characters")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointAPIKeyInfo, err)
	}
	if err := s.st.UpdateAccountKey(ctx, params); err != nil {
		return nil, err
	}
	r := reconcile.Reconciler[int32, normalize.Attrs]{
		Relation: keyRelation{st: s.st, keyID: keyID},
		Strategy: s.strategy,
		Upsert:   s.upsertCharacter,
	}
	res, err := r.Reconcile(ctx, members)
	if err != nil {
		if errors.Is(err, app.ErrPartialReconciliation) {
			logger.Warn("Account key left with incomplete characters", "error", err)
		}
		return nil, err
	}
	key, err = s.st.GetAccountKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	logger.Info(
		"Updated account key",
		"characters", res.Members.Size(),
		"attached", res.Attached.Size(),
		"detached", res.Detached.Size(),
		"strategy", s.strategy,
	)
	return key, nil
}

func keyParams(key *app.AccountKey) map[string]string {
	return map[string]string{
		eveapi.ParamKeyID:            strconv.FormatInt(key.ID, 10),
		eveapi.ParamVerificationCode: key.VerificationCode,
	}
}

func accountKeyParamsFromAttrs(keyID int64, a normalize.Attrs) (storage.UpdateAccountKeyParams, error) {
	arg := storage.UpdateAccountKeyParams{ID: keyID}
	accessMask, err := a.Int64("accessMask")
	if err != nil {
		return arg, err
	}
	arg.AccessMask = accessMask.ValueOrZero()
	arg.Type = a.String("type").ValueOrZero()
	arg.ExpiresAt, err = a.Time("expires")
	if err != nil {
		return arg, err
	}
	return arg, nil
}

// upsertCharacter creates a character from a payload row or updates the existing one.
func (s *SyncService) upsertCharacter(ctx context.Context, row normalize.Attrs) (int32, error) {
	a := row.Rename(characterAliases, ignoredAttributes...)
	id, err := requiredInt64(a, "characterID")
	if err != nil {
		return 0, err
	}
	patch, err := characterPatchFromAttrs(a)
	if err != nil {
		return 0, fmt.Errorf("character %d: %w", id, err)
	}
	return s.saveCharacter(ctx, int32(id), patch)
}

// saveCharacter applies a patch to a character and stores it.
// The character is created when it does not exist.
func (s *SyncService) saveCharacter(ctx context.Context, id int32, patch app.CharacterPatch) (int32, error) {
	c, err := s.st.GetCharacter(ctx, id)
	if errors.Is(err, app.ErrNotFound) {
		c2, err := s.st.CreateCharacter(ctx, app.Character{ID: id}.ApplyPatch(patch))
		if err != nil {
			return 0, err
		}
		slog.Info("Created character", "characterID", c2.ID)
		return c2.ID, nil
	} else if err != nil {
		return 0, err
	}
	c2, err := s.st.UpdateCharacter(ctx, c.ApplyPatch(patch))
	if err != nil {
		return 0, err
	}
	return c2.ID, nil
}

// keyRelation is the relation between an account key and its characters.
type keyRelation struct {
	st    *storage.Storage
	keyID int64
}

func (r keyRelation) ListMemberIDs(ctx context.Context) (set.Set[int32], error) {
	return r.st.ListAccountKeyCharacterIDs(ctx, r.keyID)
}

func (r keyRelation) Detach(ctx context.Context, ids set.Set[int32]) error {
	return r.st.DetachAccountKeyCharacters(ctx, r.keyID, ids)
}

func (r keyRelation) Attach(ctx context.Context, ids set.Set[int32]) error {
	return r.st.AttachAccountKeyCharacters(ctx, r.keyID, ids)
}
