package stripe

import (
	"sync"
	"time"

	"github.com/plugsnip/snip-backend/db"
)

// Ledger is the deduplication seam for webhook fulfillment. Claim must be
// an atomic check-and-set on the payment reference: a read-then-write pair
// would reopen the race between concurrent redeliveries.
//
// The reference plugin ships with no deduplication at all; PassLedger
// reproduces that documented behavior for callers that want strict parity.
type Ledger interface {
	// Claim records the payment and reports whether this caller won the
	// claim. A false return means the session was already fulfilled.
	Claim(payment *PaymentInfo) (bool, error)
	// Release undoes a claim after a failed fulfillment so the provider's
	// next redelivery can retry.
	Release(sessionID string) error
}

// PassLedger claims every payment unconditionally. It preserves the
// original plugin's behavior where a redelivered completed event fulfills
// again; install one of the real ledgers to close that gap.
type PassLedger struct{}

// Claim implements Ledger. It always reports a won claim.
func (PassLedger) Claim(*PaymentInfo) (bool, error) { return true, nil }

// Release implements Ledger.
func (PassLedger) Release(string) error { return nil }

// MemoryLedger is an in-process Ledger with a TTL on claimed sessions.
// Claims do not survive a restart; use MongoLedger when the process can be
// replaced between a delivery and its retry.
type MemoryLedger struct {
	claims   map[string]time.Time
	mutex    sync.Mutex
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLedger creates an in-memory ledger. A zero ttl defaults to 24h,
// which outlives the provider's redelivery window. Call Close when the
// ledger is no longer needed to stop its cleanup goroutine.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	ledger := &MemoryLedger{
		claims: make(map[string]time.Time),
		ttl:    ttl,
		stop:   make(chan struct{}),
	}
	go ledger.cleanup()
	return ledger
}

// Close stops the cleanup goroutine. The ledger stays usable, but expired
// claims are no longer evicted. Safe to call more than once.
func (m *MemoryLedger) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Claim implements Ledger. The check and the set happen under one lock.
func (m *MemoryLedger) Claim(payment *PaymentInfo) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.claims[payment.SessionID]; exists {
		return false, nil
	}
	m.claims[payment.SessionID] = time.Now()
	return true, nil
}

// Release implements Ledger.
func (m *MemoryLedger) Release(sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.claims, sessionID)
	return nil
}

// Size returns the number of claimed sessions, for monitoring.
func (m *MemoryLedger) Size() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.claims)
}

func (m *MemoryLedger) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mutex.Lock()
			now := time.Now()
			for sessionID, claimedAt := range m.claims {
				if now.Sub(claimedAt) > m.ttl {
					delete(m.claims, sessionID)
				}
			}
			m.mutex.Unlock()
		}
	}
}

// MongoLedger claims payments by inserting the purchase record into the
// purchases collection, whose session-id key makes the claim durable and
// atomic across processes.
type MongoLedger struct {
	DB *db.MongoStorage
}

// Claim implements Ledger.
func (l *MongoLedger) Claim(payment *PaymentInfo) (bool, error) {
	claimed, err := l.DB.ClaimPurchase(&db.Purchase{
		SessionID:  payment.SessionID,
		ProductID:  payment.ProductID,
		PayerEmail: payment.PayerEmail,
		Amount:     payment.Paid,
		Currency:   payment.Currency,
	})
	if err != nil {
		return false, NewGatewayError(CodeLedgerFailed, "failed to claim purchase", err)
	}
	return claimed, nil
}

// Release implements Ledger.
func (l *MongoLedger) Release(sessionID string) error {
	if err := l.DB.ReleasePurchase(sessionID); err != nil {
		return NewGatewayError(CodeLedgerFailed, "failed to release purchase", err)
	}
	return nil
}
