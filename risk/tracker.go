package risk

import (
	"time"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/market"
)

type State int8

const (
	Flat State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "OPEN"
	}
	return "FLAT"
}

// Position is the simulated position while it is open.
type Position struct {
	Side        Side
	EntryIndex  int
	EntryTime   time.Time
	EntryPrice  float64
	Quantity    float64
	Notional    float64
	StopPrice   float64 // 0 when stop loss is off
	TargetPrice float64 // 0 when profit target is off
	HighWater   float64
	LowWater    float64
	TrailLevel  float64 // 0 when trailing stop is off
}

// Unrealized is the open profit or loss marked at price. The loss never
// exceeds the committed notional.
func (p Position) Unrealized(price float64) float64 {
	return max(float64(p.Side)*(price-p.EntryPrice)*p.Quantity, -p.Notional)
}

// LiquidationPrice is the price at which the loss equals the committed
// notional: twice the entry for a short, zero for a long.
func (p Position) LiquidationPrice() float64 {
	if p.Quantity <= 0 {
		return p.EntryPrice
	}
	return p.EntryPrice - float64(p.Side)*p.Notional/p.Quantity
}

// settle clamps price to the liquidation level.
func (p Position) settle(price float64) float64 {
	if liq := p.LiquidationPrice(); p.Side == Short && price > liq {
		return liq
	}
	return price
}

// Tracker owns the lifecycle of at most one position:
//
//	FLAT --Open--> OPEN --Update/Close--> FLAT
//
// All exits are evaluated on the bar close. Stop loss and profit target
// are measured from the entry price, the trailing stop from the best close
// seen since entry.
type Tracker struct {
	cfg config.PositionConfig
	pos *Position
}

func NewTracker(cfg config.PositionConfig) *Tracker {
	return &Tracker{cfg: cfg}
}

func (t *Tracker) State() State {
	if t.pos == nil {
		return Flat
	}
	return Open
}

// Position returns a copy of the open position.
func (t *Tracker) Position() (Position, bool) {
	if t.pos == nil {
		return Position{}, false
	}
	return *t.pos, true
}

// Open enters side at the close of bar i, committing the configured share
// of balance.
func (t *Tracker) Open(side Side, i int, c market.Candle, balance float64) (Position, error) {
	if t.pos != nil {
		return Position{}, errs.Invariant("open at bar %d while a position from bar %d is open", i, t.pos.EntryIndex)
	}
	if side != Long && side != Short {
		return Position{}, errs.Invariant("open at bar %d with side %d", i, side)
	}
	if balance <= 0 {
		return Position{}, errs.Invariant("open at bar %d with balance %.8f", i, balance)
	}

	entry := c.Close
	qty, notional := PositionSize(balance, t.cfg.Size, entry)
	stop, target := Levels(side, entry, t.cfg.StopLossPct(), t.cfg.ProfitTarget)

	t.pos = &Position{
		Side:        side,
		EntryIndex:  i,
		EntryTime:   c.Time,
		EntryPrice:  entry,
		Quantity:    qty,
		Notional:    notional,
		StopPrice:   stop,
		TargetPrice: target,
		HighWater:   entry,
		LowWater:    entry,
	}
	t.trail()
	return *t.pos, nil
}

func (t *Tracker) trail() {
	p := t.pos
	if t.cfg.TrailingStop <= 0 {
		return
	}
	pct := t.cfg.TrailingStop / 100
	if p.Side == Long {
		p.TrailLevel = p.HighWater * (1 - pct)
	} else {
		p.TrailLevel = p.LowWater * (1 + pct)
	}
}

// Update marks the open position with bar i and reports the first risk
// exit that fires, in priority order stop loss, trailing stop,
// liquidation, profit target. Nothing fires while flat or on the entry
// bar.
func (t *Tracker) Update(i int, c market.Candle) (ExitReason, bool) {
	p := t.pos
	if p == nil || i <= p.EntryIndex {
		return "", false
	}

	px := c.Close
	if px > p.HighWater {
		p.HighWater = px
	}
	if px < p.LowWater {
		p.LowWater = px
	}
	t.trail()

	// hit reports whether px has reached level moving against (adverse)
	// or with the position.
	hit := func(level float64, adverse bool) bool {
		if level == 0 {
			return false
		}
		if (p.Side == Long) == adverse {
			return px <= level
		}
		return px >= level
	}

	switch {
	case hit(p.StopPrice, true):
		return ReasonStopLoss, true
	case hit(p.TrailLevel, true):
		return ReasonTrailingStop, true
	case p.Side == Short && px >= p.LiquidationPrice():
		return ReasonLiquidation, true
	case hit(p.TargetPrice, false):
		return ReasonProfitTarget, true
	}
	return "", false
}

// Close exits at the close of bar i and returns the trade record. A short
// whose close is past its liquidation price settles at that price. The
// tracker is flat afterwards.
func (t *Tracker) Close(i int, c market.Candle, reason ExitReason) (TradeRecord, error) {
	p := t.pos
	if p == nil {
		return TradeRecord{}, errs.Invariant("close at bar %d with no open position", i)
	}
	if i <= p.EntryIndex || !c.Time.After(p.EntryTime) {
		return TradeRecord{}, errs.Invariant("close at bar %d does not follow entry at bar %d", i, p.EntryIndex)
	}

	exit := p.settle(c.Close)
	rec := TradeRecord{
		Side:       p.Side,
		EntryTime:  p.EntryTime,
		ExitTime:   c.Time,
		EntryIndex: p.EntryIndex,
		ExitIndex:  i,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exit,
		Quantity:   p.Quantity,
		Notional:   p.Notional,
		PnL:        p.Unrealized(exit),
		PnLPct:     ReturnPct(p.Side, p.EntryPrice, exit),
		Reason:     reason,
	}
	t.pos = nil
	return rec, nil
}

// Unrealized marks the open position at price; 0 when flat.
func (t *Tracker) Unrealized(price float64) float64 {
	if t.pos == nil {
		return 0
	}
	return t.pos.Unrealized(price)
}
