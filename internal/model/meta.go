package model

import (
	"encoding/json"
	"fmt"
)

// MetaVersion is the current schema version of ledger metadata.
const MetaVersion = 1

// MetaKind tags which payload a Meta carries.
type MetaKind string

// Metadata kinds.
const (
	KindGame       MetaKind = "game"
	KindReferral   MetaKind = "referral"
	KindWithdrawal MetaKind = "withdrawal"
	KindAdjust     MetaKind = "adjust"
	KindDeposit    MetaKind = "deposit"
	KindBonus      MetaKind = "bonus"
)

// Meta is the structured context stored next to every ledger entry.
// It is a tagged union: Kind selects exactly one non-nil payload.
type Meta struct {
	V          int             `json:"v"`
	Kind       MetaKind        `json:"kind"`
	Game       *GameMeta       `json:"game,omitempty"`
	Referral   *ReferralMeta   `json:"referral,omitempty"`
	Withdrawal *WithdrawalMeta `json:"withdrawal,omitempty"`
	Adjust     *AdjustMeta     `json:"adjust,omitempty"`
	Deposit    *DepositMeta    `json:"deposit,omitempty"`
	Bonus      *BonusMeta      `json:"bonus,omitempty"`
}

// GameMeta describes a wager or its settlement.
type GameMeta struct {
	Game       string `json:"game"`
	RoundID    string `json:"round_id"`
	Bet        int64  `json:"bet"`
	Mines      int    `json:"mines,omitempty"`
	SafeOpened int    `json:"safe_opened,omitempty"`
	// Multiplier is a 2dp decimal string, e.g. "1.06".
	Multiplier string `json:"multiplier,omitempty"`
}

// ReferralMeta describes a referral bonus paid on a referral's loss.
type ReferralMeta struct {
	ReferralID int64 `json:"referral_id"`
	LossAmount int64 `json:"loss_amount"`
	Percent    int64 `json:"percent"`
}

// WithdrawalMeta links a WITHDRAW entry to its request.
type WithdrawalMeta struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Action       string `json:"action"` // RESERVE | REFUND
	Reason       string `json:"reason,omitempty"`
}

// AdjustMeta records a manual correction.
type AdjustMeta struct {
	Reason string `json:"reason"`
	Actor  int64  `json:"actor,omitempty"`
}

// DepositMeta records an external deposit.
type DepositMeta struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
}

// BonusMeta records a promotional credit.
type BonusMeta struct {
	Code string `json:"code"`
}

// NewGameMeta builds game metadata.
func NewGameMeta(g GameMeta) *Meta {
	return &Meta{V: MetaVersion, Kind: KindGame, Game: &g}
}

// NewReferralMeta builds referral metadata.
func NewReferralMeta(r ReferralMeta) *Meta {
	return &Meta{V: MetaVersion, Kind: KindReferral, Referral: &r}
}

// NewWithdrawalMeta builds withdrawal metadata.
func NewWithdrawalMeta(w WithdrawalMeta) *Meta {
	return &Meta{V: MetaVersion, Kind: KindWithdrawal, Withdrawal: &w}
}

// NewAdjustMeta builds adjustment metadata.
func NewAdjustMeta(a AdjustMeta) *Meta {
	return &Meta{V: MetaVersion, Kind: KindAdjust, Adjust: &a}
}

// NewDepositMeta builds deposit metadata.
func NewDepositMeta(d DepositMeta) *Meta {
	return &Meta{V: MetaVersion, Kind: KindDeposit, Deposit: &d}
}

// NewBonusMeta builds bonus metadata.
func NewBonusMeta(b BonusMeta) *Meta {
	return &Meta{V: MetaVersion, Kind: KindBonus, Bonus: &b}
}

// allowedKinds maps entry types to the metadata kinds they may carry.
var allowedKinds = map[EntryType]MetaKind{
	EntryBet:      KindGame,
	EntryWin:      KindGame,
	EntryRefund:   KindGame,
	EntryReferral: KindReferral,
	EntryWithdraw: KindWithdrawal,
	EntryAdjust:   KindAdjust,
	EntryDeposit:  KindDeposit,
	EntryBonus:    KindBonus,
}

// Validate checks the union shape and that the kind fits the entry type.
func (m *Meta) Validate(t EntryType) error {
	if m == nil {
		return fmt.Errorf("meta is required for %s entries", t)
	}
	if m.V != MetaVersion {
		return fmt.Errorf("unsupported meta version %d", m.V)
	}
	want, ok := allowedKinds[t]
	if !ok {
		return fmt.Errorf("unknown entry type %q", t)
	}
	if m.Kind != want {
		return fmt.Errorf("%s entries need %q meta, got %q", t, want, m.Kind)
	}

	set := 0
	for _, p := range []bool{
		m.Game != nil, m.Referral != nil, m.Withdrawal != nil,
		m.Adjust != nil, m.Deposit != nil, m.Bonus != nil,
	} {
		if p {
			set++
		}
	}
	if set != 1 || m.payloadKind() != m.Kind {
		return fmt.Errorf("meta of kind %q must carry exactly its own payload", m.Kind)
	}
	return nil
}

func (m *Meta) payloadKind() MetaKind {
	switch {
	case m.Game != nil:
		return KindGame
	case m.Referral != nil:
		return KindReferral
	case m.Withdrawal != nil:
		return KindWithdrawal
	case m.Adjust != nil:
		return KindAdjust
	case m.Deposit != nil:
		return KindDeposit
	case m.Bonus != nil:
		return KindBonus
	}
	return ""
}

// Marshal encodes the meta for the JSONB column.
func (m *Meta) Marshal() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// UnmarshalMeta decodes a JSONB column. A NULL column yields nil.
func UnmarshalMeta(data []byte) (*Meta, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode ledger meta: %w", err)
	}
	return &m, nil
}
