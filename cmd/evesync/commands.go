package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/app/syncservice"
	"github.com/ErikKalkoken/evesync/internal/config"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

// usageError is returned when a command was called with invalid arguments.
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

type command struct {
	name  string
	usage string
	help  string
	run   func(ctx context.Context, svc *services, args []string, w io.Writer) error
}

var commands = []command{
	{"add-key", "add-key <keyID> <vCode>", "add an account key and update it", runAddKey},
	{"update-key", "update-key <keyID>", "update an account key and its characters", runUpdateKey},
	{"update-character", "update-character [-key keyID] <characterID>", "update a character", runUpdateCharacter},
	{"add-token", "add-token <characterID> <refreshToken>", "add a SSO token for a character", runAddToken},
	{"update-market", "update-market [-character ID] [-refresh] <region> <typeID>", "update a market type", runUpdateMarket},
	{"show-key", "show-key <keyID>", "show an account key and its characters", runShowKey},
	{"show-market", "show-market <region> <typeID>", "show a market type", runShowMarket},
	{"run", "run", "update everything periodically until stopped", runScheduler},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func parseID[T int32 | int64](s string) (T, error) {
	var zero T
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return zero, usageError{fmt.Sprintf("invalid ID: %q", s)}
	}
	return T(v), nil
}

// parseRegion returns the region ID for a region ID or trade hub name.
func parseRegion(s string) (int32, error) {
	id, err := config.MarketConfig{Region: s}.RegionID()
	if err != nil {
		return 0, usageError{err.Error()}
	}
	return id, nil
}

func runAddKey(ctx context.Context, svc *services, args []string, w io.Writer) error {
	if len(args) != 2 {
		return usageError{"wrong number of arguments"}
	}
	keyID, err := parseID[int64](args[0])
	if err != nil {
		return err
	}
	err = svc.st.CreateAccountKey(ctx, storage.CreateAccountKeyParams{ID: keyID, VerificationCode: args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Added account key %d\n", keyID)
	return runUpdateKey(ctx, svc, args[:1], w)
}

func runUpdateKey(ctx context.Context, svc *services, args []string, w io.Writer) error {
	if len(args) != 1 {
		return usageError{"wrong number of arguments"}
	}
	keyID, err := parseID[int64](args[0])
	if err != nil {
		return err
	}
	if _, err := svc.sync.UpdateAccountKey(ctx, syncservice.AccountKeyUpdateParams{KeyID: keyID}); err != nil {
		return err
	}
	return runShowKey(ctx, svc, args, w)
}

func runUpdateCharacter(ctx context.Context, svc *services, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("update-character", flag.ContinueOnError)
	keyFlag := fs.Int64("key", 0, "ID of the account key to use")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() != 1 {
		return usageError{"wrong number of arguments"}
	}
	characterID, err := parseID[int32](fs.Arg(0))
	if err != nil {
		return err
	}
	r, err := svc.sync.UpdateCharacter(ctx, syncservice.CharacterUpdateParams{
		CharacterID: characterID,
		KeyID:       *keyFlag,
	})
	if err != nil {
		return err
	}
	c := r.Character
	fmt.Fprintf(w, "Updated character %s (%d)\n", c.Name, c.ID)
	fmt.Fprintf(w, "Corporation: %s\n", c.CorporationName)
	fmt.Fprintf(w, "Wallet: %s ISK\n", formatISK(c.AccountBalance))
	fmt.Fprintf(w, "Transactions: %d, journal entries: %d, orders: %d\n", len(r.TransactionIDs), len(r.JournalRefIDs), len(r.Orders))
	return nil
}

func runAddToken(ctx context.Context, svc *services, args []string, w io.Writer) error {
	if len(args) != 2 {
		return usageError{"wrong number of arguments"}
	}
	characterID, err := parseID[int32](args[0])
	if err != nil {
		return err
	}
	err = svc.st.UpdateOrCreateCharacterToken(ctx, storage.UpdateOrCreateCharacterTokenParams{
		CharacterID:  characterID,
		RefreshToken: args[1],
		TokenType:    "Bearer",
	})
	if err != nil {
		return err
	}
	if _, err := svc.credentials.Refresh(ctx, characterID); err != nil {
		return err
	}
	v, err := svc.credentials.Verify(ctx, characterID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Added token for %s (%d)\n", v.CharacterName, v.CharacterID)
	if v.Scopes != "" {
		fmt.Fprintf(w, "Scopes: %s\n", strings.ReplaceAll(v.Scopes, " ", ", "))
	}
	return nil
}

func runUpdateMarket(ctx context.Context, svc *services, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("update-market", flag.ContinueOnError)
	characterFlag := fs.Int("character", 0, "ID of the character whose token is used")
	refreshFlag := fs.Bool("refresh", false, "refresh the character's token first")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() != 2 {
		return usageError{"wrong number of arguments"}
	}
	regionID, err := parseRegion(fs.Arg(0))
	if err != nil {
		return err
	}
	typeID, err := parseID[int32](fs.Arg(1))
	if err != nil {
		return err
	}
	r, err := svc.sync.UpdateMarketType(ctx, syncservice.MarketTypeUpdateParams{
		CharacterID:  int32(*characterFlag),
		MaxAge:       svc.cfg.Sync.MarketMaxAge,
		RefreshToken: *refreshFlag,
		RegionID:     regionID,
		TypeID:       typeID,
	})
	if err != nil {
		return err
	}
	if !r.Fetched {
		fmt.Fprintln(w, "Market data is still fresh")
	}
	printMarketType(w, r.MarketType)
	return nil
}

func runShowKey(ctx context.Context, svc *services, args []string, w io.Writer) error {
	if len(args) != 1 {
		return usageError{"wrong number of arguments"}
	}
	keyID, err := parseID[int64](args[0])
	if err != nil {
		return err
	}
	k, err := svc.st.GetAccountKey(ctx, keyID)
	if err != nil {
		return err
	}
	ids, err := svc.st.ListAccountKeyCharacterIDs(ctx, keyID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Account key %d\n", k.ID)
	fmt.Fprintf(w, "Type: %s\n", k.Type)
	fmt.Fprintf(w, "Access mask: %d\n", k.AccessMask)
	fmt.Fprintf(w, "Expires: %s\n", k.ExpiresAt.StringFunc("never", func(v time.Time) string {
		return humanize.Time(v)
	}))
	fmt.Fprintf(w, "Updated: %s\n", humanize.Time(k.UpdatedAt))
	fmt.Fprintf(w, "Characters:\n")
	for _, id := range slices.Sorted(ids.All()) {
		c, err := svc.st.GetCharacter(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %d %s [%s]\n", c.ID, c.Name, c.CorporationName)
	}
	return nil
}

func runShowMarket(ctx context.Context, svc *services, args []string, w io.Writer) error {
	if len(args) != 2 {
		return usageError{"wrong number of arguments"}
	}
	regionID, err := parseRegion(args[0])
	if err != nil {
		return err
	}
	typeID, err := parseID[int32](args[1])
	if err != nil {
		return err
	}
	mt, err := svc.st.GetMarketType(ctx, storage.MarketTypeKey{RegionID: regionID, TypeID: typeID})
	if errors.Is(err, app.ErrNotFound) {
		return fmt.Errorf("market type %d in region %d has not been fetched yet", typeID, regionID)
	} else if err != nil {
		return err
	}
	printMarketType(w, mt)
	return nil
}

func printMarketType(w io.Writer, mt *app.MarketType) {
	region := strconv.Itoa(int(mt.RegionID))
	if h, ok := app.TradeHubs[mt.RegionID]; ok {
		region = fmt.Sprintf("%s (%d)", h.SolarSystemName, mt.RegionID)
	}
	fmt.Fprintf(w, "Type %d in %s\n", mt.TypeID, region)
	fmt.Fprintf(w, "Buy: %s ISK\n", formatISK(mt.Buy))
	fmt.Fprintf(w, "Sell: %s ISK\n", formatISK(mt.Sell))
	fmt.Fprintf(w, "Spread: %s ISK\n", humanize.CommafWithDigits(mt.Spread, 2))
	fmt.Fprintf(w, "Margin: %.1f%%\n", mt.Margin)
	fmt.Fprintf(w, "Orders: %d buy, %d sell\n", len(mt.BuyOrders), len(mt.SellOrders))
	if len(mt.MarketGroupIDPath) > 0 {
		parts := make([]string, len(mt.MarketGroupIDPath))
		for i, id := range mt.MarketGroupIDPath {
			parts[i] = strconv.Itoa(int(id))
		}
		fmt.Fprintf(w, "Market group: %s\n", strings.Join(parts, " > "))
	}
	if mt.UpdatedAt.IsZero() {
		fmt.Fprintln(w, "Updated: never")
	} else {
		fmt.Fprintf(w, "Updated: %s\n", humanize.Time(mt.UpdatedAt))
	}
}

func formatISK(v optional.Optional[float64]) string {
	return v.StringFunc("?", func(x float64) string {
		return humanize.CommafWithDigits(x, 2)
	})
}

func runScheduler(ctx context.Context, svc *services, args []string, w io.Writer) error {
	if len(args) != 0 {
		return usageError{"wrong number of arguments"}
	}
	var markets []syncservice.MarketTypeUpdateParams
	for _, m := range svc.cfg.Sync.Markets {
		regionID, err := m.RegionID()
		if err != nil {
			return err
		}
		markets = append(markets, syncservice.MarketTypeUpdateParams{
			CharacterID: m.CharacterID,
			RegionID:    regionID,
			TypeID:      m.TypeID,
		})
	}
	sc := syncservice.NewScheduler(svc.sync, syncservice.SchedulerParams{
		Interval: svc.cfg.Sync.Interval,
		Markets:  markets,
	})
	fmt.Fprintf(w, "Updating every %s. Press Ctrl+C to stop.\n", svc.cfg.Sync.Interval)
	sc.Start(ctx)
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sc.Stop(stopCtx)
}
