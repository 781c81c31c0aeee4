package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/metrics"
	"github.com/sandevgo/deskbot/internal/service/command"
	"github.com/sandevgo/deskbot/pkg/log"
	"golang.org/x/time/rate"
)

type Gate interface {
	IsRegistered(ctx context.Context, userID int64) (bool, error)
	SubmitIdentityClaim(ctx context.Context, userID int64, phone, username, fullName string) (*core.Identity, error)
}

type Answerer interface {
	Lookup(ctx context.Context, text string) (string, bool, error)
}

type Escalator interface {
	Escalate(ctx context.Context, question string, userID int64) core.Outcome
}

// Dispatcher turns inbound messages into replies. Messages of one user are
// handled one at a time in the order they were submitted; different users
// never wait on each other.
type Dispatcher struct {
	commands  core.CmdRouter
	gate      Gate
	answers   Answerer
	escalator Escalator

	mu       sync.Mutex
	queues   map[int64]*userQueue
	workers  sync.WaitGroup
	limiters *limiters
}

// job is one submitted message waiting in its user's queue.
type job struct {
	ctx     context.Context
	msg     core.InboundMessage
	limited bool
	deliver func([]core.OutboundMessage)
}

type userQueue struct {
	jobs []job
}

func New(commands core.CmdRouter, gate Gate, answers Answerer, escalator Escalator) *Dispatcher {
	return &Dispatcher{
		commands:  commands,
		gate:      gate,
		answers:   answers,
		escalator: escalator,
		queues:    make(map[int64]*userQueue),
		limiters:  newLimiters(rate.Inf, 0),
	}
}

// WithRateLimit enables per-user flood control. A non-positive perSec disables it.
func (d *Dispatcher) WithRateLimit(perSec float64, burst int) *Dispatcher {
	if perSec <= 0 {
		d.limiters = newLimiters(rate.Inf, 0)
		return d
	}
	if burst < 1 {
		burst = 1
	}
	d.limiters = newLimiters(rate.Limit(perSec), burst)
	return d
}

// Submit queues msg behind the earlier messages of the same user and returns
// at once. deliver receives the replies on the user's worker goroutine.
func (d *Dispatcher) Submit(ctx context.Context, msg core.InboundMessage, deliver func([]core.OutboundMessage)) {
	limited := !d.limiters.allow(msg.UserID)

	d.mu.Lock()
	defer d.mu.Unlock()

	q, running := d.queues[msg.UserID]
	if !running {
		q = &userQueue{}
		d.queues[msg.UserID] = q
	}
	q.jobs = append(q.jobs, job{ctx: ctx, msg: msg, limited: limited, deliver: deliver})

	if !running {
		d.workers.Add(1)
		go d.drain(msg.UserID, q)
	}
}

// Handle submits msg and waits for its replies.
func (d *Dispatcher) Handle(ctx context.Context, msg core.InboundMessage) []core.OutboundMessage {
	done := make(chan []core.OutboundMessage, 1)
	d.Submit(ctx, msg, func(out []core.OutboundMessage) { done <- out })
	return <-done
}

func (d *Dispatcher) Start(ctx context.Context) error {
	return nil
}

// Shutdown waits for queued messages to finish so storage is not closed under them.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-waitCtx.Done():
		return fmt.Errorf("dispatcher: pending messages not finished: %w", waitCtx.Err())
	}
}

// drain runs the jobs of one user until the queue is empty, then forgets it.
func (d *Dispatcher) drain(userID int64, q *userQueue) {
	defer d.workers.Done()

	for {
		d.mu.Lock()
		if len(q.jobs) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		d.mu.Unlock()

		d.run(j)
	}
}

// run delivers nil replies when processing panics so waiters are released.
func (d *Dispatcher) run(j job) {
	var out []core.OutboundMessage
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.FromCtx(j.ctx).Error().Interface("panic", r).Int64("user_id", j.msg.UserID).Msg("message handler panicked")
			}
		}()
		out = d.process(j.ctx, j.msg, j.limited)
	}()
	j.deliver(out)
}

func (d *Dispatcher) process(ctx context.Context, msg core.InboundMessage, limited bool) []core.OutboundMessage {
	start := time.Now()
	kind := msg.Kind.String()
	metrics.MessagesTotal.WithLabelValues(kind).Inc()
	defer func() {
		metrics.HandleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	ctx = log.With(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", uuid.NewString()).Int64("user_id", msg.UserID).Stringer("kind", msg.Kind)
	})
	logger := log.FromCtx(ctx)

	if limited {
		metrics.RateLimitedTotal.Inc()
		logger.Debug().Err(core.ErrRateLimited).Msg("message dropped")
		return reply(msg.UserID, command.TextSlowDown, core.KeyboardNone)
	}

	switch msg.Kind {
	case core.KindCommand:
		return d.handleCommand(ctx, msg)
	case core.KindIdentityClaim:
		return d.handleClaim(ctx, msg)
	case core.KindText:
		return d.handleText(ctx, msg)
	default:
		logger.Warn().Msg("unsupported message kind")
		return nil
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg core.InboundMessage) []core.OutboundMessage {
	out, handled := d.commands.Execute(ctx, msg)
	if !handled {
		return d.handleText(ctx, msg)
	}
	out.UserID = msg.UserID
	return []core.OutboundMessage{out}
}

func (d *Dispatcher) handleClaim(ctx context.Context, msg core.InboundMessage) []core.OutboundMessage {
	_, err := d.gate.SubmitIdentityClaim(ctx, msg.UserID, msg.Phone, msg.Username, msg.FullName)
	switch {
	case err == nil:
		metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
		return reply(msg.UserID, command.TextRegistered, core.KeyboardRemove)
	case core.IsValidation(err):
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		log.FromCtx(ctx).Info().Err(err).Msg("identity claim rejected")
		return reply(msg.UserID, command.TextInvalidPhone, core.KeyboardRequestContact)
	default:
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		log.FromCtx(ctx).Error().Err(err).Msg("failed to store identity")
		return reply(msg.UserID, command.TextRetryLater, core.KeyboardNone)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, msg core.InboundMessage) []core.OutboundMessage {
	logger := log.FromCtx(ctx)

	registered, err := d.gate.IsRegistered(ctx, msg.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("registration check failed")
		return reply(msg.UserID, command.TextRetryLater, core.KeyboardNone)
	}
	if !registered {
		return reply(msg.UserID, command.TextNeedContact, core.KeyboardRequestContact)
	}

	question := strings.TrimSpace(msg.Text)
	if question == "" {
		return reply(msg.UserID, command.TextAskQuestion, core.KeyboardNone)
	}

	answer, hit, err := d.answers.Lookup(ctx, question)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("faq lookup failed")
		return reply(msg.UserID, command.TextRetryLater, core.KeyboardNone)
	}
	if hit {
		metrics.LookupsTotal.WithLabelValues("hit").Inc()
		return []core.OutboundMessage{{UserID: msg.UserID, Text: answer, Format: core.FormatPlain}}
	}
	metrics.LookupsTotal.WithLabelValues("miss").Inc()

	outcome := d.escalator.Escalate(ctx, question, msg.UserID)
	return reply(msg.UserID, outcomeText(outcome), core.KeyboardNone)
}

func outcomeText(o core.Outcome) string {
	switch o.Kind {
	case core.OutcomeNotified:
		return command.TextForwarded
	case core.OutcomeTicketCreated:
		return fmt.Sprintf(command.TextTicketCreated, o.TicketID)
	default:
		return command.TextEscalateFailed
	}
}

func reply(userID int64, text string, kb core.KeyboardHint) []core.OutboundMessage {
	return []core.OutboundMessage{{UserID: userID, Text: text, Keyboard: kb}}
}

const limiterIdleTTL = 10 * time.Minute

type limiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	byUser   map[int64]*userLimiter
	lastScan time.Time
}

type userLimiter struct {
	*rate.Limiter
	seen time.Time
}

func newLimiters(limit rate.Limit, burst int) *limiters {
	return &limiters{
		limit:  limit,
		burst:  burst,
		byUser: make(map[int64]*userLimiter),
	}
}

func (l *limiters) allow(userID int64) bool {
	if l.limit == rate.Inf {
		return true
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastScan) > limiterIdleTTL {
		for id, ul := range l.byUser {
			if now.Sub(ul.seen) > limiterIdleTTL {
				delete(l.byUser, id)
			}
		}
		l.lastScan = now
	}

	ul, ok := l.byUser[userID]
	if !ok {
		ul = &userLimiter{Limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byUser[userID] = ul
	}
	ul.seen = now
	return ul.AllowN(now, 1)
}
