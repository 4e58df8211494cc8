package app

import (
	"time"

	"github.com/ErikKalkoken/evesync/internal/optional"
)

// CharacterWalletJournalEntry is an entry in the wallet journal of a character.
type CharacterWalletJournalEntry struct {
	Amount        float64
	ArgID         optional.Optional[int64]
	ArgName       string
	Balance       float64
	CharacterID   int32
	Date          time.Time
	OwnerID1      optional.Optional[int64]
	OwnerID2      optional.Optional[int64]
	OwnerName1    string
	OwnerName2    string
	Reason        string
	RefID         int64
	RefTypeID     int32
	TaxAmount     optional.Optional[float64]
	TaxReceiverID optional.Optional[int64]
	UpdatedAt     time.Time
}

// CharacterWalletTransaction is a market transaction of a character.
type CharacterWalletTransaction struct {
	CharacterID     int32
	ClientID        optional.Optional[int64]
	ClientName      string
	Date            time.Time
	JournalRefID    optional.Optional[int64]
	Price           float64
	Quantity        int32
	StationID       optional.Optional[int64]
	StationName     string
	TransactionFor  string
	TransactionID   int64
	TransactionType string
	TypeID          int32
	TypeName        string
	UpdatedAt       time.Time
}

// IsBuy reports whether a transaction was a buy.
func (wt CharacterWalletTransaction) IsBuy() bool {
	return wt.TransactionType == "buy"
}

// Total returns the total value of a transaction.
func (wt CharacterWalletTransaction) Total() float64 {
	return wt.Price * float64(wt.Quantity)
}
