package models

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
)

// OrderType is the intent of a single leg.
type OrderType string

const (
	BuyToOpen   OrderType = "bto"
	SellToOpen  OrderType = "sto"
	BuyToClose  OrderType = "btc"
	SellToClose OrderType = "stc"
)

// Valid reports whether t is one of the four leg intents.
func (t OrderType) Valid() bool {
	switch t {
	case BuyToOpen, SellToOpen, BuyToClose, SellToClose:
		return true
	}
	return false
}

// IsSell reports whether the intent starts with "s".
func (t OrderType) IsSell() bool {
	return len(t) > 0 && t[0] == 's'
}

// IsBuy reports whether the intent starts with "b".
func (t OrderType) IsBuy() bool {
	return len(t) > 0 && t[0] == 'b'
}

// IsOpening reports whether the leg opens a new position.
func (t OrderType) IsOpening() bool {
	return t == BuyToOpen || t == SellToOpen
}

// Condition is the fill condition of an order.
type Condition string

const (
	ConditionMarket       Condition = "market"
	ConditionLimit        Condition = "limit"
	ConditionStop         Condition = "stop"
	ConditionTrailingStop Condition = "trailing_stop"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionMarket, ConditionLimit, ConditionStop, ConditionTrailingStop:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "open"
	StatusFilled   OrderStatus = "filled"
	StatusCanceled OrderStatus = "canceled"
)

// Leg is one instrument-side component of an order. Quantity and Price are
// signed: negative for sell intents, positive for buy intents.
type Leg struct {
	Instrument Instrument
	Quantity   int64
	Type       OrderType
	Price      decimal.NullDecimal
}

// NewLeg builds a leg and normalizes the signs of quantity and price from the
// order type.
func NewLeg(inst Instrument, quantity int64, orderType OrderType, price decimal.NullDecimal) (Leg, error) {
	if !orderType.Valid() {
		return Leg{}, apperrors.NewValidationError("order_type", orderType, "order type must be one of bto, sto, btc, stc")
	}
	if inst.Symbol == "" {
		return Leg{}, apperrors.NewValidationError("instrument", inst, "an instrument is required")
	}
	if quantity == 0 {
		return Leg{}, apperrors.NewValidationError("quantity", quantity, "quantity cannot be 0")
	}

	quantity = absInt(quantity)
	if price.Valid {
		price.Decimal = price.Decimal.Abs()
	}
	if orderType.IsSell() {
		quantity = -quantity
		if price.Valid {
			price.Decimal = price.Decimal.Neg()
		}
	}

	return Leg{
		Instrument: inst,
		Quantity:   quantity,
		Type:       orderType,
		Price:      price,
	}, nil
}

// IDGenerator hands out order ids.
type IDGenerator interface {
	NextID() string
}

// SequenceGenerator produces PREFIX-1, PREFIX-2, ... and is safe for
// concurrent use.
type SequenceGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceGenerator creates a sequence generator. An empty prefix
// defaults to "PB".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "PB"
	}
	return &SequenceGenerator{prefix: prefix}
}

// NextID returns the next id in the sequence.
func (g *SequenceGenerator) NextID() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}

// UUIDGenerator produces random ids.
type UUIDGenerator struct {
	Prefix string
}

// NextID returns a new random id.
func (g UUIDGenerator) NextID() string {
	if g.Prefix == "" {
		return uuid.NewString()
	}
	return g.Prefix + "-" + uuid.NewString()
}

// OrderOptions configures a new order.
type OrderOptions struct {
	Condition      Condition
	Price          decimal.NullDecimal
	Trail          decimal.Decimal
	TrailIsPercent bool
	TimeInForce    string
}

// Order is a multi-leg trade intent with a fill condition.
//
// Price is the aggregate signed limit/stop reference. For trailing stops the
// execution engine rewrites Price and TrailBest on every evaluation.
type Order struct {
	ID             string
	Condition      Condition
	Price          decimal.NullDecimal
	Trail          decimal.Decimal
	TrailIsPercent bool
	TrailBest      decimal.NullDecimal
	TimeInForce    string

	legs         []Leg
	status       OrderStatus
	trailBatched bool
	priceUnset   bool
}

// NewOrder creates an open order. A nil generator falls back to random ids.
func NewOrder(ids IDGenerator, opts OrderOptions) (*Order, error) {
	if ids == nil {
		ids = UUIDGenerator{Prefix: "PB"}
	}
	cond := opts.Condition
	if cond == "" {
		cond = ConditionMarket
	}
	if !cond.Valid() {
		return nil, apperrors.WrapValidation(apperrors.ErrInvalidOrder, "condition", cond, "unknown order condition")
	}

	o := &Order{
		ID:          ids.NextID(),
		Condition:   cond,
		Price:       opts.Price,
		TimeInForce: opts.TimeInForce,
		status:      StatusOpen,
	}
	if o.TimeInForce == "" {
		o.TimeInForce = "day"
	}

	if cond == ConditionTrailingStop {
		if !opts.Trail.IsPositive() {
			return nil, apperrors.WrapValidation(apperrors.ErrInvalidTrail, "trail", opts.Trail, "trailing stop requires a positive trail")
		}
		o.Trail = opts.Trail
		o.TrailIsPercent = opts.TrailIsPercent
	}
	return o, nil
}

// Status returns the lifecycle state.
func (o *Order) Status() OrderStatus {
	return o.status
}

// IsOpen reports whether the order can still fill or be canceled.
func (o *Order) IsOpen() bool {
	return o.status == StatusOpen
}

// Legs returns a copy of the order's legs in insertion order.
func (o *Order) Legs() []Leg {
	legs := make([]Leg, len(o.legs))
	copy(legs, o.legs)
	return legs
}

// LegCount returns the number of legs.
func (o *Order) LegCount() int {
	return len(o.legs)
}

// AddLeg appends a leg. A second leg on the same instrument is rejected.
func (o *Order) AddLeg(leg Leg) error {
	if !o.IsOpen() {
		return apperrors.WrapValidation(apperrors.ErrInvalidOrder, "status", o.status, "legs can only be added to open orders")
	}
	if leg.Instrument.Symbol == "" || !leg.Type.Valid() || leg.Quantity == 0 {
		return apperrors.WrapValidation(apperrors.ErrInvalidOrder, "leg", leg, "leg is incomplete")
	}
	if (leg.Type.IsSell() && leg.Quantity > 0) || (leg.Type.IsBuy() && leg.Quantity < 0) ||
		(leg.Price.Valid && leg.Price.Decimal.Sign() != 0 && leg.Price.Decimal.Sign() != signInt(leg.Quantity)) {
		return apperrors.WrapValidation(apperrors.ErrLegPolarity, "leg", leg.Instrument.Symbol, "quantity and price signs must match the order type")
	}
	for _, existing := range o.legs {
		if existing.Instrument.Equal(leg.Instrument) {
			return apperrors.WrapValidation(apperrors.ErrDuplicateLeg, "instrument", leg.Instrument.Symbol, "symbol already exists within this order")
		}
	}

	first := len(o.legs) == 0
	o.legs = append(o.legs, leg)

	switch {
	case !leg.Price.Valid:
		o.Price = decimal.NullDecimal{}
		o.priceUnset = true
	case o.priceUnset:
	case o.Price.Valid:
		o.Price = decimal.NewNullDecimal(o.Price.Decimal.Add(legValue(leg)))
	case first:
		o.Price = decimal.NewNullDecimal(legValue(leg))
	}

	if o.Condition == ConditionTrailingStop && !o.TrailIsPercent && !o.trailBatched {
		o.Trail = o.Trail.Abs().Mul(decimal.NewFromInt(absInt(leg.Quantity)))
		o.trailBatched = true
	}
	return nil
}

// SetPrice replaces the aggregate limit/stop price. Legs added afterwards
// still adjust it under the AddLeg rules.
func (o *Order) SetPrice(price decimal.Decimal) {
	o.Price = decimal.NewNullDecimal(price)
	o.priceUnset = false
}

// Add builds a leg from its parts and appends it.
func (o *Order) Add(inst Instrument, quantity int64, orderType OrderType, price decimal.NullDecimal) error {
	leg, err := NewLeg(inst, quantity, orderType, price)
	if err != nil {
		return err
	}
	return o.AddLeg(leg)
}

// BuyToOpen appends a bto leg.
func (o *Order) BuyToOpen(inst Instrument, quantity int64, price decimal.NullDecimal) error {
	return o.Add(inst, quantity, BuyToOpen, price)
}

// SellToOpen appends an sto leg.
func (o *Order) SellToOpen(inst Instrument, quantity int64, price decimal.NullDecimal) error {
	return o.Add(inst, quantity, SellToOpen, price)
}

// BuyToClose appends a btc leg.
func (o *Order) BuyToClose(inst Instrument, quantity int64, price decimal.NullDecimal) error {
	return o.Add(inst, quantity, BuyToClose, price)
}

// SellToClose appends an stc leg.
func (o *Order) SellToClose(inst Instrument, quantity int64, price decimal.NullDecimal) error {
	return o.Add(inst, quantity, SellToClose, price)
}

// Duplicate scales the aggregate price and every leg quantity by times.
func (o *Order) Duplicate(times int64) error {
	if times <= 0 {
		return apperrors.NewValidationError("times", times, "times must be positive")
	}
	if o.Price.Valid {
		o.Price.Decimal = o.Price.Decimal.Mul(decimal.NewFromInt(times))
	}
	for i := range o.legs {
		o.legs[i].Quantity *= times
	}
	return nil
}

// MarkFilled moves an open order to filled.
func (o *Order) MarkFilled() error {
	return o.transition(StatusFilled)
}

// Cancel moves an open order to canceled.
func (o *Order) Cancel() error {
	return o.transition(StatusCanceled)
}

func (o *Order) transition(to OrderStatus) error {
	if o.status != StatusOpen {
		return apperrors.NewStateError(string(to), o.ID, fmt.Sprintf("order is %s", o.status), apperrors.ErrOrderNotOpen)
	}
	o.status = to
	return nil
}

func legValue(leg Leg) decimal.Decimal {
	return leg.Price.Decimal.Mul(decimal.NewFromInt(absInt(leg.Quantity)))
}

func absInt(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func signInt(n int64) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
