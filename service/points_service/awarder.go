package points_service

import (
	"sync"

	"mini-app-service/metrics"

	"github.com/rs/zerolog/log"
)

const defaultQueueSize = 256

type award struct {
	identity    string
	amount      int64
	reason      string
	referenceID string
}

// Awarder delivers point awards to a ledger off the request path.
// Award never blocks: when the queue is full the award is dropped and logged.
type Awarder struct {
	ledger Ledger
	queue  chan award

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	stopped  bool
}

// NewAwarder create awarder; call Start before Award
func NewAwarder(ledger Ledger, queueSize int) *Awarder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Awarder{
		ledger: ledger,
		queue:  make(chan award, queueSize),
	}
}

// Start launch the delivery worker
func (a *Awarder) Start() {
	a.wg.Add(1)
	go a.run()
	log.Info().Int("queue_size", cap(a.queue)).Msg("points awarder started")
}

// Stop drain queued awards and wait for the worker to exit
func (a *Awarder) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		close(a.queue)
		a.mu.Unlock()
	})
	a.wg.Wait()
}

// Award enqueue a point award
func (a *Awarder) Award(identity string, amount int64, reason, referenceID string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		metrics.LedgerAwardsTotal.WithLabelValues("dropped").Inc()
		log.Error().Str("identity", identity).Str("reference_id", referenceID).Msg("points awarder stopped, award dropped")
		return
	}

	select {
	case a.queue <- award{identity: identity, amount: amount, reason: reason, referenceID: referenceID}:
	default:
		metrics.LedgerAwardsTotal.WithLabelValues("dropped").Inc()
		log.Error().Str("identity", identity).Str("reference_id", referenceID).Msg("points queue full, award dropped")
	}
}

func (a *Awarder) run() {
	defer a.wg.Done()
	for aw := range a.queue {
		a.deliver(aw)
	}
}

func (a *Awarder) deliver(aw award) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LedgerAwardsTotal.WithLabelValues("failed").Inc()
			log.Error().Interface("panic", r).Str("identity", aw.identity).Msg("points award panicked")
		}
	}()

	if err := a.ledger.AwardPoints(aw.identity, aw.amount, aw.reason, aw.referenceID); err != nil {
		metrics.LedgerAwardsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).
			Str("identity", aw.identity).
			Int64("amount", aw.amount).
			Str("reference_id", aw.referenceID).
			Msg("points award failed")
		return
	}
	metrics.LedgerAwardsTotal.WithLabelValues("ok").Inc()
}
