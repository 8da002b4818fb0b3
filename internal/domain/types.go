package domain

import "time"

// SourceName identifies a SignalSource variant (spec.md §4.1).
type SourceName string

const (
	SourceML        SourceName = "ml"
	SourceRL        SourceName = "rl"
	SourceSentiment SourceName = "sentiment"
	SourceTechnical SourceName = "technical"
)

func (s SourceName) Valid() bool {
	switch s {
	case SourceML, SourceRL, SourceSentiment, SourceTechnical:
		return true
	}
	return false
}

// AllSources lists the four SignalSource variants in a fixed order,
// used anywhere iteration order must be deterministic (e.g. tests).
var AllSources = []SourceName{SourceML, SourceRL, SourceSentiment, SourceTechnical}

// Direction is a verdict or decision's implied direction.
type Direction string

const (
	DirUp      Direction = "up"
	DirDown    Direction = "down"
	DirNeutral Direction = "neutral"
)

// Agreement is the degree to which independent signal sources share
// direction (GLOSSARY).
type Agreement string

const (
	AgreementFull     Agreement = "full"
	AgreementMajority Agreement = "majority"
	AgreementMixed    Agreement = "mixed"
	AgreementNone     Agreement = "none"
)

// Threshold maps an agreement level to its numeric floor, per spec.md §4.3 check 2.
func (a Agreement) Threshold() float64 {
	switch a {
	case AgreementFull:
		return 1.0
	case AgreementMajority:
		return 0.66
	case AgreementMixed:
		return 0.33
	default:
		return 0
	}
}

// AtLeast reports whether a meets or exceeds the minimum agreement level.
func (a Agreement) AtLeast(min Agreement) bool {
	return a.Threshold() >= min.Threshold()
}

// TraderState is the Trader lifecycle state (spec.md §4.6).
type TraderState string

const (
	TraderStopped TraderState = "stopped"
	TraderRunning TraderState = "running"
	TraderPaused  TraderState = "paused"
)

// ProductType is the traded instrument kind (spec.md §3).
type ProductType string

const (
	ProductStock    ProductType = "stock"
	ProductCFD      ProductType = "cfd"
	ProductKnockout ProductType = "knockout"
	ProductFactor   ProductType = "factor"
	ProductWarrant  ProductType = "warrant"
)

func (p ProductType) Valid() bool {
	switch p {
	case ProductStock, ProductCFD, ProductKnockout, ProductFactor, ProductWarrant:
		return true
	}
	return false
}

// SupportsShort reports whether the product type may be opened short
// (spec.md §4.2 step 5).
func (p ProductType) SupportsShort() bool {
	switch p {
	case ProductCFD, ProductKnockout, ProductFactor:
		return true
	}
	return false
}

// Side is a position's directional stance.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderType and OrderSide/OrderStatus model the Order entity (spec.md §3).
type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

type OrderSide string

const (
	OrderBuy   OrderSide = "buy"
	OrderSell  OrderSide = "sell"
	OrderShort OrderSide = "short"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// CloseReason records exactly one reason a Position was closed (spec.md §3).
type CloseReason string

const (
	CloseUser       CloseReason = "user"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTakeProfit CloseReason = "take_profit"
	CloseKnockout   CloseReason = "knockout"
	CloseMarginCall CloseReason = "margin_call"
	CloseExpiry     CloseReason = "expiry"
	CloseReset      CloseReason = "reset"
)

// DecisionType is the outcome of a tick's evaluation for one symbol
// (spec.md §3).
type DecisionType string

const (
	DecisionBuy   DecisionType = "buy"
	DecisionSell  DecisionType = "sell"
	DecisionShort DecisionType = "short"
	DecisionClose DecisionType = "close"
	DecisionHold  DecisionType = "hold"
	DecisionSkip  DecisionType = "skip"
)

// Verdict is a single SignalSource's output for one symbol (GLOSSARY).
type Verdict struct {
	Source     SourceName `json:"source"`
	Score      float64    `json:"score"`      // [0,1], 0.5 neutral
	Confidence float64    `json:"confidence"` // [0,1]
	Direction  Direction  `json:"direction"`
	Rationale  string     `json:"rationale"`
}

// Candle is one OHLCV bar, the unit PriceFeed yields (spec.md §6).
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Quote is a point-in-time price observation.
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}
