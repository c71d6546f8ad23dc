package quotes

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"paperbroker/internal/models"
)

// Source is the quote source contract the engine reads from. Implementations
// must return a consistent point-in-time snapshot per call and report absent
// data with ok == false rather than an error.
type Source interface {
	// Quote returns the latest quote for inst.
	Quote(inst models.Instrument) (models.Quote, bool)
	// Options returns option quotes, filtered by underlying symbol and
	// expiration date when those are non-empty.
	Options(underlying string, expiration time.Time) []models.Quote
	// ExpirationDates returns sorted unique option expirations.
	ExpirationDates(underlying string) []time.Time
}

// Lookup fetches a quote from src as a pointer, nil when absent.
func Lookup(src Source, inst models.Instrument) *models.Quote {
	q, ok := src.Quote(inst)
	if !ok {
		return nil
	}
	return &q
}

// MemorySource is a mutex-guarded quote cache. It can be written by a
// streaming feed through OnMarketData while the engine reads from it.
type MemorySource struct {
	mu       sync.RWMutex
	equities map[string]models.Quote
	options  map[string]models.Quote
	other    map[string]models.Quote
	lastSeen map[string]time.Time

	greeks GreeksEstimator
	logger zerolog.Logger
}

// MemorySourceConfig configures a MemorySource.
type MemorySourceConfig struct {
	Greeks GreeksEstimator
	Logger *zerolog.Logger
}

// NewMemorySource creates an empty quote cache.
func NewMemorySource(cfg MemorySourceConfig) *MemorySource {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &MemorySource{
		equities: make(map[string]models.Quote),
		options:  make(map[string]models.Quote),
		other:    make(map[string]models.Quote),
		lastSeen: make(map[string]time.Time),
		greeks:   cfg.Greeks,
		logger:   logger,
	}
}

// Put stores q, replacing any previous quote for the same symbol.
func (m *MemorySource) Put(q models.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(q, m.routeFor(q.Instrument))
}

// PutAll stores every quote under a single lock.
func (m *MemorySource) PutAll(qs []models.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		m.putLocked(q, m.routeFor(q.Instrument))
	}
}

func (m *MemorySource) routeFor(inst models.Instrument) map[string]models.Quote {
	switch inst.Kind {
	case models.KindCall, models.KindPut:
		return m.options
	case models.KindEquity:
		return m.equities
	}
	return m.other
}

func (m *MemorySource) putLocked(q models.Quote, into map[string]models.Quote) {
	sym := models.NormalizeSymbol(q.Instrument.Symbol)
	into[sym] = q
	m.lastSeen[sym] = q.AsOf
}

// Quote implements Source.
func (m *MemorySource) Quote(inst models.Instrument) (models.Quote, bool) {
	sym := models.NormalizeSymbol(inst.Symbol)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.options[sym]; ok {
		return q, true
	}
	if q, ok := m.equities[sym]; ok {
		return q, true
	}
	q, ok := m.other[sym]
	return q, ok
}

// Options implements Source.
func (m *MemorySource) Options(underlying string, expiration time.Time) []models.Quote {
	underlying = models.NormalizeSymbol(underlying)
	m.mu.RLock()
	out := make([]models.Quote, 0, len(m.options))
	for _, q := range m.options {
		if underlying != "" && q.Instrument.Underlying != underlying {
			continue
		}
		if !expiration.IsZero() && !sameDate(q.Instrument.Expiration, expiration) {
			continue
		}
		out = append(out, q)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Instrument.Symbol < out[j].Instrument.Symbol
	})
	return out
}

// ExpirationDates implements Source.
func (m *MemorySource) ExpirationDates(underlying string) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, q := range m.Options(underlying, time.Time{}) {
		exp := q.Instrument.Expiration
		if _, ok := seen[exp]; ok {
			continue
		}
		seen[exp] = struct{}{}
		dates = append(dates, exp)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// LastSeen returns the as-of time of the latest quote stored for symbol.
func (m *MemorySource) LastSeen(symbol string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.lastSeen[models.NormalizeSymbol(symbol)]
	return t, ok
}

// Len returns the number of cached quotes.
func (m *MemorySource) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.equities) + len(m.options) + len(m.other)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

var _ Source = (*MemorySource)(nil)
