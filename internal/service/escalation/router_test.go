package escalation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHelpdesk struct {
	categories  []core.Category
	listErr     error
	createErr   error
	ticketID    string
	listCalls   atomic.Int32
	createCalls atomic.Int32

	mu      sync.Mutex
	tickets []core.Ticket
}

func (f *fakeHelpdesk) ListCategories(ctx context.Context) ([]core.Category, error) {
	f.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.categories, f.listErr
}

func (f *fakeHelpdesk) CreateTicket(ctx context.Context, t core.Ticket) (string, error) {
	f.createCalls.Add(1)
	f.mu.Lock()
	f.tickets = append(f.tickets, t)
	f.mu.Unlock()
	return f.ticketID, f.createErr
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []core.Escalation
	err     error
}

func (f *fakeJournal) SaveEscalation(ctx context.Context, e core.Escalation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

type fakeIdentities map[int64]core.Identity

func (f fakeIdentities) GetIdentity(ctx context.Context, userID int64) (*core.Identity, error) {
	id, ok := f[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &id, nil
}

func (f fakeIdentities) UpsertIdentity(ctx context.Context, identity core.Identity) error {
	f[identity.UserID] = identity
	return nil
}

type fakeNotifier struct {
	questions []string
	err       error
}

func (f *fakeNotifier) NotifyAdmin(ctx context.Context, identity *core.Identity, question string) error {
	f.questions = append(f.questions, question)
	return f.err
}

var registered = fakeIdentities{
	7: {UserID: 7, Phone: "+71234567890", Username: "ivan", FullName: "Ivan"},
}

func TestEscalate_Passive(t *testing.T) {
	journal := &fakeJournal{}
	notifier := &fakeNotifier{}
	r := NewRouter(core.EscalationPassive, journal, registered).WithNotifier(notifier)

	out := r.Escalate(context.Background(), "where is my order", 7)

	assert.Equal(t, core.OutcomeNotified, out.Kind)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"where is my order"}, notifier.questions)
	require.Len(t, journal.entries, 1)
	assert.Equal(t, core.EscalationPassive, journal.entries[0].Mode)
	assert.Equal(t, core.OutcomeNotified, journal.entries[0].Status)
}

func TestEscalate_PassiveNotifierFailureStillNotified(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("chat not found")}
	r := NewRouter(core.EscalationPassive, nil, registered).WithNotifier(notifier)

	out := r.Escalate(context.Background(), "q", 7)
	assert.Equal(t, core.OutcomeNotified, out.Kind)
}

func TestEscalate_ActiveCreatesTicket(t *testing.T) {
	hd := &fakeHelpdesk{
		categories: []core.Category{{Code: "billing", ID: 3}, {Code: "FAQ", ID: 12}},
		ticketID:   "345",
	}
	journal := &fakeJournal{}
	r := NewRouter(core.EscalationActive, journal, registered).WithHelpdesk(hd, "faq")

	out := r.Escalate(context.Background(), "refund for order 42", 7)

	require.NoError(t, out.Err)
	assert.Equal(t, core.OutcomeTicketCreated, out.Kind)
	assert.Equal(t, "345", out.TicketID)

	require.Len(t, hd.tickets, 1)
	ticket := hd.tickets[0]
	assert.Equal(t, int64(12), ticket.CategoryID)
	assert.Equal(t, "+71234567890", ticket.ClientID)
	assert.Equal(t, "refund for order 42", ticket.Subject)
	assert.Contains(t, ticket.Description, "User ID: 7")
	assert.Contains(t, ticket.Description, "Username: @ivan")

	require.Len(t, journal.entries, 1)
	assert.Equal(t, "345", journal.entries[0].TicketID)
}

func TestEscalate_UnknownCategoryNeverCreatesTicket(t *testing.T) {
	hd := &fakeHelpdesk{categories: []core.Category{{Code: "billing", ID: 3}}}
	journal := &fakeJournal{}
	r := NewRouter(core.EscalationActive, journal, registered).WithHelpdesk(hd, "faq")

	for i := 0; i < 3; i++ {
		out := r.Escalate(context.Background(), "q", 7)
		assert.Equal(t, core.OutcomeFailed, out.Kind)
		assert.ErrorIs(t, out.Err, core.ErrCategoryNotFound)
	}

	assert.Zero(t, hd.createCalls.Load())
	require.Len(t, journal.entries, 3)
	assert.Contains(t, journal.entries[0].Error, "category not found")
}

func TestEscalate_ExternalServiceError(t *testing.T) {
	hd := &fakeHelpdesk{
		categories: []core.Category{{Code: "faq", ID: 12}},
		createErr:  &core.ExternalServiceError{Op: "create_ticket", Status: 500, Body: "db down"},
	}
	r := NewRouter(core.EscalationActive, nil, registered).WithHelpdesk(hd, "faq")

	out := r.Escalate(context.Background(), "q", 7)

	assert.Equal(t, core.OutcomeFailed, out.Kind)
	var ext *core.ExternalServiceError
	assert.ErrorAs(t, out.Err, &ext)
}

func TestEscalate_ActiveWithoutHelpdesk(t *testing.T) {
	r := NewRouter(core.EscalationActive, nil, registered)

	out := r.Escalate(context.Background(), "q", 7)
	assert.ErrorIs(t, out.Err, ErrHelpdeskNotConfigured)
}

func TestEscalate_UnregisteredUsesUserID(t *testing.T) {
	hd := &fakeHelpdesk{categories: []core.Category{{Code: "faq", ID: 12}}, ticketID: "1"}
	r := NewRouter(core.EscalationActive, nil, fakeIdentities{}).WithHelpdesk(hd, "faq")

	out := r.Escalate(context.Background(), "q", 99)
	require.NoError(t, out.Err)
	assert.Equal(t, "99", hd.tickets[0].ClientID)
}

func TestResolveCategory_CachedAndShared(t *testing.T) {
	hd := &fakeHelpdesk{categories: []core.Category{{Code: "faq", ID: 12}}, ticketID: "1"}
	r := NewRouter(core.EscalationActive, &fakeJournal{}, registered).WithHelpdesk(hd, "faq")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Escalate(context.Background(), "q", 7)
		}()
	}
	wg.Wait()

	r.Escalate(context.Background(), "q", 7)

	assert.LessOrEqual(t, hd.listCalls.Load(), int32(10))
	assert.Equal(t, int32(11), hd.createCalls.Load())

	calls := hd.listCalls.Load()
	r.Escalate(context.Background(), "q", 7)
	assert.Equal(t, calls, hd.listCalls.Load())
}

func TestResolveCategory_DetachedFromCallerCancellation(t *testing.T) {
	hd := &fakeHelpdesk{categories: []core.Category{{Code: "faq", ID: 12}}, ticketID: "7"}
	r := NewRouter(core.EscalationActive, nil, registered).WithHelpdesk(hd, "faq")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id, err := r.resolveCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	out := r.Escalate(context.Background(), "q", 7)
	require.NoError(t, out.Err)
	assert.Equal(t, int32(1), hd.listCalls.Load())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "short question", subject("  short \n question "))

	long := strings.Repeat("я", 100)
	got := subject(long)
	assert.Equal(t, maxSubjectRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
