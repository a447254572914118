package models

import "time"

// Classification of an edge candidate against the configured edge threshold.
type Classification string

const (
	ClassOpportunity Classification = "OPPORTUNITY"
	ClassNoEdge      Classification = "NO_EDGE"
)

// Direction of a recommended trade.
type Direction string

const (
	BuyYes Direction = "buy_yes"
	BuyNo  Direction = "buy_no"
)

// EdgeCandidate is the priced comparison between the model's probability and
// the market's, one per contract per cycle.
type EdgeCandidate struct {
	Contract   Contract       `json:"contract"`
	ModelProb  float64        `json:"model_prob"`
	MarketProb float64        `json:"market_prob"`
	Edge       float64        `json:"edge"` // model - market, signed
	AbsEdge    float64        `json:"abs_edge"`
	Class      Classification `json:"classification"`
	Lottery    bool           `json:"lottery"` // cheap contract with positive expected value
}

// Opportunity is a risk-checked, sized trade recommendation. Terminal
// artifact of a scan cycle; never mutated after creation.
type Opportunity struct {
	ID        string        `json:"id"`
	Candidate EdgeCandidate `json:"candidate"`
	Direction Direction     `json:"direction"`
	Stake     float64       `json:"stake"` // bankroll units (USD)
	CreatedAt time.Time     `json:"created_at"`
}

// RejectReason explains why the risk manager declined a candidate. These are
// normal control-flow outcomes recorded for audit, not errors.
type RejectReason string

const (
	RejectNoEdge        RejectReason = "no_edge"
	RejectDailyLimit    RejectReason = "daily_limit_exceeded"
	RejectBankrollLimit RejectReason = "bankroll_limit_exceeded"
)

// Rejection records a candidate the risk manager declined.
type Rejection struct {
	Candidate EdgeCandidate `json:"candidate"`
	Reason    RejectReason  `json:"reason"`
	At        time.Time     `json:"at"`
}

// PositionStatus is the lifecycle state of a paper position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is a paper trade taken against an opportunity.
type Position struct {
	ID            string         `json:"id"`
	MarketID      string         `json:"market_id"`
	Question      string         `json:"question"`
	Location      string         `json:"location"`
	Date          string         `json:"date"`
	Variable      Variable       `json:"variable"`
	Operator      Operator       `json:"operator"`
	Threshold     float64        `json:"threshold"`
	ThresholdHigh float64        `json:"threshold_high,omitempty"`
	Direction     Direction      `json:"direction"`
	Price         float64        `json:"price"`
	Shares        float64        `json:"shares"`
	Stake         float64        `json:"stake"`
	Status        PositionStatus `json:"status"`
	Result        string         `json:"result,omitempty"` // WON or LOST once settled
	Payout        float64        `json:"payout"`
	CreatedAt     time.Time      `json:"created_at"`
	SettledAt     time.Time      `json:"settled_at,omitzero"`
}
