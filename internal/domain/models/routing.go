package models

import "github.com/shopspring/decimal"

type Venue string

const (
	VenueRaydium Venue = "raydium"
	VenueMeteora Venue = "meteora"
)

type DexQuote struct {
	Venue          Venue
	Price          decimal.Decimal
	FeeRate        decimal.Decimal
	EffectivePrice decimal.Decimal
}

// RoutingDecision живёт только внутри одной попытки исполнения:
// котировки симулируются заново при каждом вызове и не кэшируются.
type RoutingDecision struct {
	Quotes []DexQuote
	Best   DexQuote
}

type SwapResult struct {
	Venue         Venue
	ExecutedPrice decimal.Decimal
	TxRef         string
}
