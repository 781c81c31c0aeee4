package escalation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/metrics"
	"github.com/sandevgo/deskbot/pkg/log"
	"golang.org/x/sync/singleflight"
)

const (
	maxSubjectRunes       = 80
	categoryLookupTimeout = 30 * time.Second
)

var ErrHelpdeskNotConfigured = errors.New("active escalation requires a helpdesk")

// Router hands questions the FAQ could not answer to a human: either by
// informing an administrator (passive) or by opening a helpdesk ticket (active).
type Router struct {
	mode       core.EscalationMode
	journal    core.EscalationRepository
	identities core.IdentityRepository

	helpdesk     core.Helpdesk
	categoryCode string
	notifier     core.Notifier

	group      singleflight.Group
	mu         sync.RWMutex
	categoryID int64
	resolved   bool

	now func() time.Time
}

func NewRouter(
	mode core.EscalationMode,
	journal core.EscalationRepository,
	identities core.IdentityRepository,
) *Router {
	return &Router{
		mode:       mode,
		journal:    journal,
		identities: identities,
		now:        time.Now,
	}
}

// WithHelpdesk sets the ticketing backend and the category code new tickets are filed under.
func (r *Router) WithHelpdesk(h core.Helpdesk, categoryCode string) *Router {
	r.helpdesk = h
	r.categoryCode = strings.TrimSpace(categoryCode)
	return r
}

// WithNotifier sets who is told about passively escalated questions.
func (r *Router) WithNotifier(n core.Notifier) *Router {
	r.notifier = n
	return r
}

func (r *Router) Mode() core.EscalationMode {
	return r.mode
}

func (r *Router) Escalate(ctx context.Context, question string, userID int64) core.Outcome {
	logger := log.FromCtx(ctx)

	identity, err := r.identities.GetIdentity(ctx, userID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		// the ticket can still be filed with the bare user id
		logger.Warn().Err(err).Int64("user_id", userID).Msg("identity lookup failed during escalation")
		identity = nil
	}

	var outcome core.Outcome
	switch r.mode {
	case core.EscalationActive:
		outcome = r.createTicket(ctx, question, userID, identity)
	default:
		outcome = r.notify(ctx, question, identity)
	}

	r.record(ctx, question, userID, outcome)
	metrics.EscalationsTotal.WithLabelValues(string(r.mode), string(outcome.Kind)).Inc()

	if outcome.Err != nil {
		logger.Error().Err(outcome.Err).
			Int64("user_id", userID).
			Str("mode", string(r.mode)).
			Msg("escalation failed")
	} else {
		logger.Info().
			Int64("user_id", userID).
			Str("mode", string(r.mode)).
			Str("outcome", string(outcome.Kind)).
			Str("ticket_id", outcome.TicketID).
			Msg("question escalated")
	}
	return outcome
}

// notify never fails the user-facing outcome: the question is journaled
// for review even when the admin chat cannot be reached.
func (r *Router) notify(ctx context.Context, question string, identity *core.Identity) core.Outcome {
	if r.notifier != nil {
		if err := r.notifier.NotifyAdmin(ctx, identity, question); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to forward question to admin")
		}
	}
	return core.Outcome{Kind: core.OutcomeNotified}
}

func (r *Router) createTicket(ctx context.Context, question string, userID int64, identity *core.Identity) core.Outcome {
	if r.helpdesk == nil {
		return failed(ErrHelpdeskNotConfigured)
	}

	categoryID, err := r.resolveCategory(ctx)
	if err != nil {
		return failed(err)
	}

	ticketID, err := r.helpdesk.CreateTicket(ctx, core.Ticket{
		Subject:     subject(question),
		Description: description(question, userID, identity),
		ClientID:    clientID(userID, identity),
		CategoryID:  categoryID,
	})
	if err != nil {
		return failed(err)
	}
	return core.Outcome{Kind: core.OutcomeTicketCreated, TicketID: ticketID}
}

// resolveCategory maps the configured category code to the helpdesk id.
// Concurrent misses share one ListCategories call; a resolved id is kept
// for the life of the process.
func (r *Router) resolveCategory(ctx context.Context) (int64, error) {
	r.mu.RLock()
	id, ok := r.categoryID, r.resolved
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := r.group.Do(r.categoryCode, func() (interface{}, error) {
		// shared by every waiter, so one caller's cancellation must not fail the others
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), categoryLookupTimeout)
		defer cancel()

		categories, err := r.helpdesk.ListCategories(lookupCtx)
		if err != nil {
			return int64(0), err
		}
		for _, c := range categories {
			if strings.EqualFold(c.Code, r.categoryCode) {
				r.mu.Lock()
				r.categoryID, r.resolved = c.ID, true
				r.mu.Unlock()
				return c.ID, nil
			}
		}
		return int64(0), fmt.Errorf("%w: %q", core.ErrCategoryNotFound, r.categoryCode)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (r *Router) record(ctx context.Context, question string, userID int64, outcome core.Outcome) {
	if r.journal == nil {
		return
	}

	e := core.Escalation{
		UserID:    userID,
		Question:  question,
		Mode:      r.mode,
		Status:    outcome.Kind,
		TicketID:  outcome.TicketID,
		CreatedAt: r.now().UTC(),
	}
	if outcome.Err != nil {
		e.Error = outcome.Err.Error()
	}

	if _, err := r.journal.SaveEscalation(ctx, e); err != nil {
		log.FromCtx(ctx).Error().Err(err).Int64("user_id", userID).Msg("failed to journal escalation")
	}
}

func failed(err error) core.Outcome {
	return core.Outcome{Kind: core.OutcomeFailed, Err: err}
}

func subject(question string) string {
	question = strings.Join(strings.Fields(question), " ")
	if utf8.RuneCountInString(question) <= maxSubjectRunes {
		return question
	}
	runes := []rune(question)
	return string(runes[:maxSubjectRunes-1]) + "…"
}

func description(question string, userID int64, identity *core.Identity) string {
	var sb strings.Builder
	sb.WriteString(question)
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("User ID: %d\n", userID))
	if identity != nil {
		sb.WriteString(fmt.Sprintf("Phone: %s\n", identity.Phone))
		if identity.FullName != "" {
			sb.WriteString(fmt.Sprintf("Name: %s\n", identity.FullName))
		}
		if identity.Username != "" {
			sb.WriteString(fmt.Sprintf("Username: @%s\n", identity.Username))
		}
	}
	return sb.String()
}

func clientID(userID int64, identity *core.Identity) string {
	if identity != nil && identity.Phone != "" {
		return identity.Phone
	}
	return strconv.FormatInt(userID, 10)
}
