package trading

import (
	"errors"
	"testing"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
)

func TestOCOGroup_FirstFillCancelsSiblings(t *testing.T) {
	src := newSource()
	putQuote(src, "AAPL", "10")
	putQuote(src, "MSFT", "20")
	account := models.NewAccount("acct", dec("1000"))

	first := marketOrder(leg(models.BuyToOpen, "AAPL", 1))
	second := marketOrder(leg(models.BuyToOpen, "MSFT", 1))
	group := NewOCOGroup("G-1", first, second)

	resolved, err := EvaluateOCO(group, account, src, nil)
	if err != nil || !resolved {
		t.Fatalf("Evaluate = %v, %v", resolved, err)
	}
	if first.Status() != models.StatusFilled || second.Status() != models.StatusCanceled {
		t.Errorf("statuses = %s, %s", first.Status(), second.Status())
	}
	if group.IsActive() {
		t.Error("group should be inactive")
	}
	if len(account.Ledger) != 1 || !account.Cash.Equal(dec("990")) {
		t.Errorf("ledger %d cash %s", len(account.Ledger), account.Cash)
	}

	// Evaluating a resolved group is a no-op.
	resolved, err = EvaluateOCO(group, account, src, nil)
	if err != nil || !resolved || len(account.Ledger) != 1 {
		t.Errorf("second Evaluate = %v, %v (ledger %d)", resolved, err, len(account.Ledger))
	}
}

func TestOCOGroup_SkipsUntriggeredSiblings(t *testing.T) {
	src := newSource()
	putQuote(src, "AAPL", "10")
	putQuote(src, "MSFT", "20")
	account := models.NewAccount("acct", dec("1000"))

	limit := conditionalOrder(t, models.ConditionLimit, "5", leg(models.BuyToOpen, "AAPL", 1))
	market := marketOrder(leg(models.BuyToOpen, "MSFT", 1))

	group := NewOCOGroup("G-2", limit, market)
	resolved, err := group.Evaluate(account, &Executor{Quotes: src})
	if err != nil || !resolved {
		t.Fatalf("Evaluate = %v, %v", resolved, err)
	}
	if limit.Status() != models.StatusCanceled || market.Status() != models.StatusFilled {
		t.Errorf("statuses = %s, %s", limit.Status(), market.Status())
	}
}

func TestOCOGroup_Unresolved(t *testing.T) {
	src := newSource()
	putQuote(src, "AAPL", "10")
	account := models.NewAccount("acct", dec("1000"))

	limit := conditionalOrder(t, models.ConditionLimit, "5", leg(models.BuyToOpen, "AAPL", 1))
	stop := conditionalOrder(t, models.ConditionStop, "15", leg(models.BuyToOpen, "AAPL", 1))

	group := NewOCOGroup("G-3", limit, stop)
	resolved, err := EvaluateOCO(group, account, src, nil)
	if err != nil || resolved {
		t.Fatalf("Evaluate = %v, %v", resolved, err)
	}
	if !group.IsActive() || !limit.IsOpen() || !stop.IsOpen() {
		t.Error("nothing should change when no sibling fills")
	}

	putQuote(src, "AAPL", "16")
	resolved, err = EvaluateOCO(group, account, src, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !resolved || stop.Status() != models.StatusFilled || limit.Status() != models.StatusCanceled {
		t.Errorf("resolved %v, statuses %s %s", resolved, limit.Status(), stop.Status())
	}
}

func TestOCOGroup_ErrorLeavesGroupActive(t *testing.T) {
	src := newSource()
	putQuote(src, "MSFT", "20")
	account := models.NewAccount("acct", dec("1000"))

	missing := marketOrder(leg(models.BuyToOpen, "NOPE", 1))
	other := marketOrder(leg(models.BuyToOpen, "MSFT", 1))
	group := NewOCOGroup("G-4", missing, other)

	resolved, err := EvaluateOCO(group, account, src, nil)
	if resolved || !errors.Is(err, apperrors.ErrQuoteNotFound) {
		t.Fatalf("Evaluate = %v, %v", resolved, err)
	}
	if !group.IsActive() || !other.IsOpen() {
		t.Error("group should stay active after a fatal sibling error")
	}
}

func TestOCOGroup_MarginFailureKeepsSiblingsOpen(t *testing.T) {
	src := newSource()
	putQuote(src, "XYZ240119P00100000", "2.00")
	putQuote(src, "MSFT", "20")
	account := models.NewAccount("acct", dec("1000"))

	// No XYZ quote, so the naked put's margin cannot be computed.
	short := marketOrder(leg(models.SellToOpen, "XYZ240119P00100000", 1))
	other := marketOrder(leg(models.BuyToOpen, "MSFT", 1))
	group := NewOCOGroup("G-6", short, other)

	resolved, err := EvaluateOCO(group, account, src, nil)
	if resolved || !errors.Is(err, apperrors.ErrQuoteNotFound) {
		t.Fatalf("Evaluate = %v, %v", resolved, err)
	}
	if !group.IsActive() || !short.IsOpen() || !other.IsOpen() {
		t.Errorf("active %v, statuses %s %s", group.IsActive(), short.Status(), other.Status())
	}
}

func TestOCOGroup_Cancel(t *testing.T) {
	a := marketOrder(leg(models.BuyToOpen, "AAPL", 1))
	b := marketOrder(leg(models.BuyToOpen, "MSFT", 1))
	if err := b.MarkFilled(); err != nil {
		t.Fatalf("MarkFilled: %v", err)
	}

	group := NewOCOGroup("G-5", a, b)
	group.Cancel()
	if group.IsActive() || a.Status() != models.StatusCanceled || b.Status() != models.StatusFilled {
		t.Errorf("active %v, statuses %s %s", group.IsActive(), a.Status(), b.Status())
	}
	if len(group.Orders()) != 2 {
		t.Errorf("Orders() = %d", len(group.Orders()))
	}
}
