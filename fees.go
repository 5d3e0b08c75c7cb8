package arenakit

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// FeePolicy is either a legacy gas price or an EIP-1559 fee pair
type FeePolicy struct {
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// IsLegacy reports whether the policy is a single gas price
func (p FeePolicy) IsLegacy() bool {
	return p.GasPrice != nil
}

func (p FeePolicy) String() string {
	if p.IsLegacy() {
		return fmt.Sprintf("gasPrice=%s", p.GasPrice)
	}
	return fmt.Sprintf("maxFee=%s tip=%s", p.GasFeeCap, p.GasTipCap)
}

func (p FeePolicy) copy() FeePolicy {
	return FeePolicy{GasPrice: copyInt(p.GasPrice), GasFeeCap: copyInt(p.GasFeeCap), GasTipCap: copyInt(p.GasTipCap)}
}

// ceiling is the highest per-gas price the policy may pay
func (p FeePolicy) ceiling() *big.Int {
	if p.IsLegacy() {
		return p.GasPrice
	}
	return p.GasFeeCap
}

func (p FeePolicy) scaled(percent uint64) FeePolicy {
	return FeePolicy{
		GasPrice:  scalePercent(p.GasPrice, percent),
		GasFeeCap: scalePercent(p.GasFeeCap, percent),
		GasTipCap: scalePercent(p.GasTipCap, percent),
	}
}

// raisedAbove returns p with every field strictly above prev. A policy that
// switched between legacy and EIP-1559 is compared against prev's ceiling.
func (p FeePolicy) raisedAbove(prev FeePolicy) FeePolicy {
	out := p.copy()
	if out.IsLegacy() {
		out.GasPrice = atLeastAbove(out.GasPrice, prev.ceiling())
		return out
	}
	prevTip, prevCap := prev.GasTipCap, prev.GasFeeCap
	if prev.IsLegacy() {
		prevTip, prevCap = prev.GasPrice, prev.GasPrice
	}
	out.GasTipCap = atLeastAbove(out.GasTipCap, prevTip)
	out.GasFeeCap = atLeastAbove(out.GasFeeCap, prevCap)
	if out.GasFeeCap.Cmp(out.GasTipCap) < 0 {
		out.GasFeeCap = copyInt(out.GasTipCap)
	}
	return out
}

func copyInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func scalePercent(x *big.Int, percent uint64) *big.Int {
	if x == nil {
		return nil
	}
	out := new(big.Int).Mul(x, new(big.Int).SetUint64(percent))
	return out.Quo(out, big.NewInt(100))
}

// atLeastAbove returns max(x, prev+1)
func atLeastAbove(x, prev *big.Int) *big.Int {
	if x == nil || prev == nil {
		return copyInt(x)
	}
	floor := new(big.Int).Add(prev, big.NewInt(1))
	if x.Cmp(floor) < 0 {
		return floor
	}
	return new(big.Int).Set(x)
}

// FeeConfig configures a FeeEstimator
type FeeConfig struct {
	// Fixed overrides, both or neither
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	// MultiplierPercent scales the node fee, 0 means DefaultFeeMultiplierPercent
	MultiplierPercent uint64

	// BumpSchedule holds per-attempt percentages, nil means DefaultBumpSchedule
	BumpSchedule []uint64
}

// FeeEstimator computes the fee policy for each submission attempt
type FeeEstimator struct {
	source     FeeSource
	fixed      *FeePolicy
	multiplier uint64
	schedule   []uint64
}

// NewFeeEstimator validates cfg and returns an estimator
func NewFeeEstimator(source FeeSource, cfg FeeConfig) (*FeeEstimator, error) {
	e := &FeeEstimator{
		source:     source,
		multiplier: cfg.MultiplierPercent,
		schedule:   cfg.BumpSchedule,
	}
	if e.multiplier == 0 {
		e.multiplier = DefaultFeeMultiplierPercent
	}
	if len(e.schedule) == 0 {
		e.schedule = DefaultBumpSchedule
	}
	for i, pct := range e.schedule {
		if pct == 0 || (i > 0 && pct <= e.schedule[i-1]) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFeeSchedule, e.schedule)
		}
	}

	switch {
	case cfg.MaxFeePerGas != nil && cfg.MaxPriorityFeePerGas != nil:
		if cfg.MaxFeePerGas.Cmp(cfg.MaxPriorityFeePerGas) < 0 {
			return nil, fmt.Errorf("max fee per gas %s below priority fee %s", cfg.MaxFeePerGas, cfg.MaxPriorityFeePerGas)
		}
		e.fixed = &FeePolicy{GasFeeCap: copyInt(cfg.MaxFeePerGas), GasTipCap: copyInt(cfg.MaxPriorityFeePerGas)}
	case cfg.MaxFeePerGas != nil || cfg.MaxPriorityFeePerGas != nil:
		return nil, ErrIncompleteFeeOverride
	default:
		if source == nil {
			return nil, fmt.Errorf("fee source is required without fixed overrides")
		}
	}
	return e, nil
}

// Fixed reports whether fees come from configuration rather than the node
func (e *FeeEstimator) Fixed() bool {
	return e.fixed != nil
}

// BumpPercent is the bump for attempt. Indexes past the schedule continue
// by its last step.
func (e *FeeEstimator) BumpPercent(attempt int) uint64 {
	if attempt < 0 {
		attempt = 0
	}
	n := len(e.schedule)
	if attempt < n {
		return e.schedule[attempt]
	}
	last := e.schedule[n-1]
	step := uint64(1)
	switch {
	case n > 1:
		step = last - e.schedule[n-2]
	case last > 100:
		step = last - 100
	}
	return last + uint64(attempt-n+1)*step
}

// Estimate returns the fee policy for attempt. Fixed overrides are returned
// unchanged; otherwise the node fee is multiplied and then bumped.
func (e *FeeEstimator) Estimate(ctx context.Context, attempt int) (FeePolicy, error) {
	if e.fixed != nil {
		return e.fixed.copy(), nil
	}
	base, err := e.Base(ctx)
	if err != nil {
		return FeePolicy{}, err
	}
	fee := e.bump(base, attempt)
	zap.L().Debug("fee estimated",
		zap.Int("attempt", attempt),
		zap.Uint64("bump_percent", e.BumpPercent(attempt)),
		zap.Stringer("fee", fee),
	)
	return fee, nil
}

// Base is the node fee with the multiplier applied and no bump
func (e *FeeEstimator) Base(ctx context.Context) (FeePolicy, error) {
	if e.fixed != nil {
		return e.fixed.copy(), nil
	}
	fee, err := e.nodeFee(ctx)
	if err != nil {
		return FeePolicy{}, err
	}
	return fee.scaled(e.multiplier), nil
}

// bump walks the schedule up to attempt so rounding never yields two equal fees
func (e *FeeEstimator) bump(base FeePolicy, attempt int) FeePolicy {
	fee := base.scaled(e.BumpPercent(0))
	for i := 1; i <= attempt; i++ {
		fee = base.scaled(e.BumpPercent(i)).raisedAbove(fee)
	}
	return fee
}

func (e *FeeEstimator) nodeFee(ctx context.Context) (FeePolicy, error) {
	head, err := e.source.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("get latest header: %w", err)
	}
	if head.BaseFee == nil {
		price, err := e.source.SuggestGasPrice(ctx)
		if err != nil {
			return FeePolicy{}, fmt.Errorf("suggest gas price: %w", err)
		}
		return FeePolicy{GasPrice: price}, nil
	}
	tip, err := e.source.SuggestGasTipCap(ctx)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return FeePolicy{GasFeeCap: feeCap, GasTipCap: new(big.Int).Set(tip)}, nil
}
