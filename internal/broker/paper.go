package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/logging"
	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
	"paperbroker/internal/store"
	"paperbroker/internal/trading"
	"paperbroker/pkg/utils"
)

// PaperBroker implements Broker on top of the trading engine.
//
// Every fill is run against a copy of the account and only persisted when it
// succeeds, so callers see all-or-nothing fills even though the engine
// itself applies legs one at a time.
type PaperBroker struct {
	store    store.AccountStore
	executor *trading.Executor
	ids      models.IDGenerator
	retry    utils.RetryConfig
	logger   zerolog.Logger

	books map[string]*orderBook
	mu    sync.Mutex
}

// orderBook holds the open work for one account.
type orderBook struct {
	orders []*models.Order
	groups []*trading.OCOGroup
}

// PaperBrokerConfig holds configuration for paper broker.
type PaperBrokerConfig struct {
	Store     store.AccountStore
	Quotes    quotes.Source
	Estimator quotes.Estimator
	IDs       models.IDGenerator
	Logger    *zerolog.Logger
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig) (*PaperBroker, error) {
	if cfg.Quotes == nil {
		return nil, apperrors.NewValidationError("quotes", nil, "a quote source is required")
	}
	st := cfg.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = models.UUIDGenerator{Prefix: "PB"}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	retry := utils.DefaultRetryConfig()
	retry.RetryableErrors = []error{apperrors.ErrDatabaseError}

	return &PaperBroker{
		store: st,
		retry: retry,
		executor: &trading.Executor{
			Quotes:    cfg.Quotes,
			Estimator: cfg.Estimator,
		},
		ids:    ids,
		logger: logger,
		books:  make(map[string]*orderBook),
	}, nil
}

// CreateAccount creates and persists a new account. An empty id is assigned
// from the broker's id generator.
func (p *PaperBroker) CreateAccount(ctx context.Context, id string, cash decimal.Decimal) (*models.Account, error) {
	if cash.IsNegative() {
		return nil, apperrors.NewValidationError("cash", cash.String(), "starting cash cannot be negative")
	}
	if id == "" {
		id = p.ids.NextID()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.store.GetAccount(ctx, id, nil); err == nil {
		return nil, apperrors.NewValidationError("account_id", id, "account already exists")
	} else if !apperrors.Is(err, apperrors.ErrAccountNotFound) {
		return nil, err
	}

	account := models.NewAccount(id, cash)
	if err := p.store.PutAccount(ctx, account, nil); err != nil {
		return nil, err
	}
	log := logging.WithAccount(p.logger, id)
	log.Info().Str("cash", cash.String()).Msg("Account created")
	return account, nil
}

// Account returns the latest persisted state of an account.
func (p *PaperBroker) Account(ctx context.Context, id string) (*models.Account, error) {
	return p.store.GetAccount(ctx, id, nil)
}

// RefreshMargin recomputes and persists maintenance margin against current
// quotes.
func (p *PaperBroker) RefreshMargin(ctx context.Context, id string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, err := p.store.GetAccount(ctx, id, nil)
	if err != nil {
		return decimal.Zero, err
	}
	margin, err := p.executor.Margin.MaintenanceMargin(account.Positions, p.executor.Quotes)
	if err != nil {
		return decimal.Zero, err
	}
	account.MaintenanceMargin = margin
	if err := p.store.PutAccount(ctx, account, nil); err != nil {
		return decimal.Zero, err
	}
	logging.LogMargin(p.logger, id, margin.String(), account.Cash.String())
	return margin, nil
}

// PlaceOrder adds order to the account's book and evaluates it once. Orders
// that do not fill stay open until Evaluate or CancelOrder.
func (p *PaperBroker) PlaceOrder(ctx context.Context, accountID string, order *models.Order) (*OrderResult, error) {
	if order == nil {
		return nil, apperrors.WrapValidation(apperrors.ErrInvalidOrder, "order", nil, "order is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	account, err := p.store.GetAccount(ctx, accountID, nil)
	if err != nil {
		return nil, err
	}

	logging.LogOrder(p.logger, order.ID, string(order.Condition), string(order.Status()), order.LegCount())
	result, err := p.fill(ctx, account, order)
	if err != nil {
		return result, err
	}
	if order.IsOpen() {
		book := p.book(accountID)
		book.orders = append(book.orders, order)
	}
	return result, nil
}

// PlaceOCO groups orders so that the first to fill cancels the rest, and
// evaluates the group once.
func (p *PaperBroker) PlaceOCO(ctx context.Context, accountID string, orders ...*models.Order) (*OCOResult, error) {
	if len(orders) < 2 {
		return nil, apperrors.WrapValidation(apperrors.ErrInvalidOrder, "orders", len(orders), "an OCO group needs at least two orders")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	account, err := p.store.GetAccount(ctx, accountID, nil)
	if err != nil {
		return nil, err
	}

	group := trading.NewOCOGroup(p.ids.NextID(), orders...)
	result, err := p.evaluateGroup(ctx, account, group)
	if err != nil {
		return result, err
	}
	if group.IsActive() {
		book := p.book(accountID)
		book.groups = append(book.groups, group)
	}
	return result, nil
}

// CancelOrder cancels an open order, or every open sibling when orderID names
// an OCO group.
func (p *PaperBroker) CancelOrder(ctx context.Context, accountID, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	book := p.book(accountID)
	for _, o := range book.orders {
		if o.ID == orderID {
			if err := o.Cancel(); err != nil {
				return err
			}
			logging.LogOrder(p.logger, o.ID, string(o.Condition), string(o.Status()), o.LegCount())
			book.prune()
			return nil
		}
	}
	for _, g := range book.groups {
		if g.ID == orderID {
			g.Cancel()
			book.prune()
			return nil
		}
		for _, o := range g.Orders() {
			if o.ID == orderID {
				if err := o.Cancel(); err != nil {
					return err
				}
				book.prune()
				return nil
			}
		}
	}
	return apperrors.NewOrderError(orderID, "", "cancel", "order not found", apperrors.ErrOrderNotFound)
}

// OpenOrders lists the account's open orders, OCO siblings included.
func (p *PaperBroker) OpenOrders(accountID string) []*models.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	book := p.book(accountID)
	var out []*models.Order
	out = append(out, book.orders...)
	for _, g := range book.groups {
		for _, o := range g.Orders() {
			if o.IsOpen() {
				out = append(out, o)
			}
		}
	}
	return out
}

// Evaluate re-runs every open order and OCO group for the account against
// current quotes. It stops at the first error.
func (p *PaperBroker) Evaluate(ctx context.Context, accountID string) ([]OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, err := p.store.GetAccount(ctx, accountID, nil)
	if err != nil {
		return nil, err
	}

	book := p.book(accountID)
	defer book.prune()

	var results []OrderResult
	for _, o := range book.orders {
		if !o.IsOpen() {
			continue
		}
		r, err := p.fill(ctx, account, o)
		if r != nil {
			results = append(results, *r)
		}
		if err != nil {
			return results, err
		}
		if latest, err := p.store.GetAccount(ctx, accountID, nil); err == nil {
			account = latest
		}
	}
	for _, g := range book.groups {
		r, err := p.evaluateGroup(ctx, account, g)
		if r != nil {
			results = append(results, r.Orders...)
		}
		if err != nil {
			return results, err
		}
		if latest, err := p.store.GetAccount(ctx, accountID, nil); err == nil {
			account = latest
		}
	}
	return results, nil
}

// fill runs the engine on a copy of account and persists it when the order
// fills.
func (p *PaperBroker) fill(ctx context.Context, account *models.Account, order *models.Order) (*OrderResult, error) {
	log := logging.WithOrderID(logging.WithAccount(p.logger, account.ID), order.ID)
	working := account.Clone()
	before := len(working.Ledger)

	_, err := p.executor.Fill(working, order)
	result := &OrderResult{OrderID: order.ID, Status: order.Status()}
	if err != nil {
		// The working copy may hold applied legs; dropping it keeps the
		// stored account unchanged.
		log.Warn().Err(err).Msg("Order evaluation failed")
		result.Message = err.Error()
		return result, err
	}
	if order.Status() != models.StatusFilled {
		return result, nil
	}

	if err := p.persist(ctx, working, before, order, log); err != nil {
		return result, err
	}
	result.Fills = len(working.Ledger) - before
	return result, nil
}

func (p *PaperBroker) evaluateGroup(ctx context.Context, account *models.Account, group *trading.OCOGroup) (*OCOResult, error) {
	log := logging.WithAccount(p.logger, account.ID).With().Str("oco_group", group.ID).Logger()
	working := account.Clone()
	before := len(working.Ledger)

	resolved, err := group.Evaluate(working, p.executor)
	result := &OCOResult{GroupID: group.ID, Resolved: resolved}

	var filled *models.Order
	for _, o := range group.Orders() {
		r := OrderResult{OrderID: o.ID, Status: o.Status()}
		if err == nil && o.Status() == models.StatusFilled && len(working.Ledger) > before {
			filled = o
			r.Fills = len(working.Ledger) - before
		}
		result.Orders = append(result.Orders, r)
	}

	if err != nil {
		log.Warn().Err(err).Msg("OCO evaluation failed")
		return result, err
	}
	if filled == nil {
		return result, nil
	}
	if err := p.persist(ctx, working, before, filled, logging.WithOrderID(log, filled.ID)); err != nil {
		return result, err
	}
	log.Info().Str("filled", filled.ID).Msg("OCO group resolved")
	return result, nil
}

func (p *PaperBroker) persist(ctx context.Context, account *models.Account, before int, order *models.Order, log zerolog.Logger) error {
	err := utils.Retry(ctx, p.retry, func() error {
		return p.store.PutAccount(ctx, account, nil)
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist account after fill")
		return fmt.Errorf("persisting account %s: %w", account.ID, err)
	}
	for _, e := range account.Ledger[before:] {
		logging.LogFill(log, e.OrderID, e.Symbol, string(e.Side), e.Quantity, e.FillPrice.String(), e.CashDelta.String())
	}
	logging.LogOrder(log, order.ID, string(order.Condition), string(order.Status()), order.LegCount())
	logging.LogMargin(log, account.ID, account.MaintenanceMargin.String(), account.Cash.String())
	return nil
}

func (p *PaperBroker) book(accountID string) *orderBook {
	b, ok := p.books[accountID]
	if !ok {
		b = &orderBook{}
		p.books[accountID] = b
	}
	return b
}

// prune drops orders and groups that are no longer open.
func (b *orderBook) prune() {
	open := b.orders[:0]
	for _, o := range b.orders {
		if o.IsOpen() {
			open = append(open, o)
		}
	}
	b.orders = open

	active := b.groups[:0]
	for _, g := range b.groups {
		if g.IsActive() && hasOpen(g) {
			active = append(active, g)
		}
	}
	b.groups = active
}

func hasOpen(g *trading.OCOGroup) bool {
	for _, o := range g.Orders() {
		if o.IsOpen() {
			return true
		}
	}
	return false
}

var _ Broker = (*PaperBroker)(nil)
