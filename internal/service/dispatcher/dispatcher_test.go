package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/service/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	mu         sync.Mutex
	registered map[int64]bool
	checkErr   error
	claimErr   error
	claimDelay time.Duration
}

func (g *fakeGate) IsRegistered(_ context.Context, userID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registered[userID], g.checkErr
}

func (g *fakeGate) SubmitIdentityClaim(_ context.Context, userID int64, phone, _, _ string) (*core.Identity, error) {
	time.Sleep(g.claimDelay)
	if g.claimErr != nil {
		return nil, g.claimErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.registered == nil {
		g.registered = map[int64]bool{}
	}
	g.registered[userID] = true
	return &core.Identity{UserID: userID, Phone: phone}, nil
}

func (g *fakeGate) Identity(_ context.Context, userID int64) (*core.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.registered[userID] {
		return nil, nil
	}
	return &core.Identity{UserID: userID}, nil
}

type fakeTopics []string

func (f fakeTopics) Add(context.Context, string, string) error { return nil }

func (f fakeTopics) ImportFile(context.Context, string, core.MergeMode) (core.MergeResult, error) {
	return core.MergeResult{}, nil
}

func (f fakeTopics) Questions(context.Context) ([]string, error) { return f, nil }

type fakeAnswers struct {
	answers map[string]string
	err     error
	calls   atomic.Int32
	hook    func(text string)
}

func (a *fakeAnswers) Lookup(_ context.Context, text string) (string, bool, error) {
	a.calls.Add(1)
	if a.hook != nil {
		a.hook(text)
	}
	if a.err != nil {
		return "", false, a.err
	}
	ans, ok := a.answers[text]
	return ans, ok, nil
}

type fakeEscalator struct {
	outcome   core.Outcome
	questions []string
}

func (e *fakeEscalator) Escalate(_ context.Context, question string, _ int64) core.Outcome {
	e.questions = append(e.questions, question)
	return e.outcome
}

type fakeCommands struct{}

func (fakeCommands) Execute(_ context.Context, msg core.InboundMessage) (core.OutboundMessage, bool) {
	if msg.Text == "/start" {
		return core.OutboundMessage{Text: command.TextWelcome, Keyboard: core.KeyboardRequestContact}, true
	}
	return core.OutboundMessage{}, false
}

func (fakeCommands) ListCommands() []core.Command { return nil }

func text(userID int64, s string) core.InboundMessage {
	return core.InboundMessage{UserID: userID, Kind: core.KindText, Text: s}
}

func TestHandle_UnregisteredTextNeverReachesEngine(t *testing.T) {
	answers := &fakeAnswers{answers: map[string]string{"price": "10$"}}
	esc := &fakeEscalator{}
	d := New(fakeCommands{}, &fakeGate{}, answers, esc)

	out := d.Handle(context.Background(), text(1, "price"))

	require.Len(t, out, 1)
	assert.Equal(t, command.TextNeedContact, out[0].Text)
	assert.Equal(t, core.KeyboardRequestContact, out[0].Keyboard)
	assert.Zero(t, answers.calls.Load())
	assert.Empty(t, esc.questions)
}

func TestHandle_Text(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		outcome       core.Outcome
		want          string
		wantEscalated bool
	}{
		{
			name:  "hit",
			input: "price",
			want:  "10$",
		},
		{
			name:          "miss passive",
			input:         "refund?",
			outcome:       core.Outcome{Kind: core.OutcomeNotified},
			want:          command.TextForwarded,
			wantEscalated: true,
		},
		{
			name:          "miss active",
			input:         "refund?",
			outcome:       core.Outcome{Kind: core.OutcomeTicketCreated, TicketID: "345"},
			want:          "No answer found. We opened request #345, our team will contact you.",
			wantEscalated: true,
		},
		{
			name:          "miss failed",
			input:         "refund?",
			outcome:       core.Outcome{Kind: core.OutcomeFailed},
			want:          command.TextEscalateFailed,
			wantEscalated: true,
		},
		{
			name:  "blank",
			input: "   ",
			want:  command.TextAskQuestion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &fakeGate{registered: map[int64]bool{7: true}}
			esc := &fakeEscalator{outcome: tt.outcome}
			d := New(fakeCommands{}, gate, &fakeAnswers{answers: map[string]string{"price": "10$"}}, esc)

			out := d.Handle(context.Background(), text(7, tt.input))

			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Text)
			assert.Equal(t, int64(7), out[0].UserID)
			if tt.input == "price" {
				assert.Equal(t, core.FormatPlain, out[0].Format)
			} else {
				assert.Equal(t, core.FormatMarkdown, out[0].Format)
			}
			if tt.wantEscalated {
				assert.Equal(t, []string{tt.input}, esc.questions)
			} else {
				assert.Empty(t, esc.questions)
			}
		})
	}
}

func TestHandle_StoreFailures(t *testing.T) {
	storeErr := &core.StoreError{Op: "find_answer", Err: core.ErrTimeout}

	t.Run("registration check", func(t *testing.T) {
		answers := &fakeAnswers{}
		d := New(fakeCommands{}, &fakeGate{checkErr: storeErr}, answers, &fakeEscalator{})
		out := d.Handle(context.Background(), text(1, "price"))
		assert.Equal(t, command.TextRetryLater, out[0].Text)
		assert.Zero(t, answers.calls.Load())
	})

	t.Run("lookup", func(t *testing.T) {
		esc := &fakeEscalator{}
		gate := &fakeGate{registered: map[int64]bool{1: true}}
		d := New(fakeCommands{}, gate, &fakeAnswers{err: storeErr}, esc)
		out := d.Handle(context.Background(), text(1, "price"))
		assert.Equal(t, command.TextRetryLater, out[0].Text)
		assert.Empty(t, esc.questions)
	})
}

func TestHandle_IdentityClaim(t *testing.T) {
	claim := core.InboundMessage{UserID: 3, Kind: core.KindIdentityClaim, Phone: "+71234567890"}

	tests := []struct {
		name     string
		claimErr error
		want     string
		wantKb   core.KeyboardHint
	}{
		{"accepted", nil, command.TextRegistered, core.KeyboardRemove},
		{"invalid", &core.ValidationError{Field: "phone", Reason: "bad"}, command.TextInvalidPhone, core.KeyboardRequestContact},
		{"store error", &core.StoreError{Op: "upsert_identity", Err: core.ErrTimeout}, command.TextRetryLater, core.KeyboardNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(fakeCommands{}, &fakeGate{claimErr: tt.claimErr}, &fakeAnswers{}, &fakeEscalator{})
			out := d.Handle(context.Background(), claim)
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Text)
			assert.Equal(t, tt.wantKb, out[0].Keyboard)
		})
	}
}

func TestHandle_RegistrationUnlocksQuestions(t *testing.T) {
	answers := &fakeAnswers{answers: map[string]string{"price": "10$"}}
	d := New(fakeCommands{}, &fakeGate{}, answers, &fakeEscalator{})
	ctx := context.Background()

	out := d.Handle(ctx, text(5, "price"))
	assert.Equal(t, command.TextNeedContact, out[0].Text)

	d.Handle(ctx, core.InboundMessage{UserID: 5, Kind: core.KindIdentityClaim, Phone: "+71234567890"})

	out = d.Handle(ctx, text(5, "price"))
	assert.Equal(t, "10$", out[0].Text)
}

func TestHandle_Command(t *testing.T) {
	d := New(fakeCommands{}, &fakeGate{registered: map[int64]bool{1: true}}, &fakeAnswers{answers: map[string]string{"/price": "10$"}}, &fakeEscalator{})

	out := d.Handle(context.Background(), core.InboundMessage{UserID: 1, Kind: core.KindCommand, Text: "/start"})
	assert.Equal(t, command.TextWelcome, out[0].Text)
	assert.Equal(t, int64(1), out[0].UserID)
}

func TestHandle_FAQTopicsRequireRegistration(t *testing.T) {
	gate := &fakeGate{registered: map[int64]bool{2: true}}
	topics := fakeTopics{"secret internal question"}
	commands := command.New([]core.Command{command.NewFAQCommand(gate, topics)})
	d := New(commands, gate, &fakeAnswers{}, &fakeEscalator{})

	out := d.Handle(context.Background(), core.InboundMessage{UserID: 1, Kind: core.KindCommand, Text: "/faq"})
	require.Len(t, out, 1)
	assert.Equal(t, command.TextNeedContact, out[0].Text)
	assert.Equal(t, core.KeyboardRequestContact, out[0].Keyboard)

	out = d.Handle(context.Background(), core.InboundMessage{UserID: 2, Kind: core.KindCommand, Text: "/faq"})
	assert.Contains(t, out[0].Text, "secret internal question")
}

func TestHandle_RateLimit(t *testing.T) {
	answers := &fakeAnswers{answers: map[string]string{"price": "10$"}}
	gate := &fakeGate{registered: map[int64]bool{1: true, 2: true}}
	d := New(fakeCommands{}, gate, answers, &fakeEscalator{}).WithRateLimit(0.001, 2)
	ctx := context.Background()

	assert.Equal(t, "10$", d.Handle(ctx, text(1, "price"))[0].Text)
	assert.Equal(t, "10$", d.Handle(ctx, text(1, "price"))[0].Text)
	assert.Equal(t, command.TextSlowDown, d.Handle(ctx, text(1, "price"))[0].Text)
	assert.Equal(t, int32(2), answers.calls.Load())

	// other users keep their own bucket
	assert.Equal(t, "10$", d.Handle(ctx, text(2, "price"))[0].Text)
}

func TestHandle_SameUserSerialized(t *testing.T) {
	var active, peak atomic.Int32
	answers := &fakeAnswers{hook: func(string) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
	}}
	d := New(fakeCommands{}, &fakeGate{registered: map[int64]bool{1: true}}, answers, &fakeEscalator{outcome: core.Outcome{Kind: core.OutcomeNotified}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Handle(context.Background(), text(1, "q"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int32(10), answers.calls.Load())
}

func TestHandle_UsersDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	answers := &fakeAnswers{
		answers: map[string]string{"slow": "a", "fast": "b"},
		hook: func(text string) {
			if text == "slow" {
				<-release
			}
		},
	}
	gate := &fakeGate{registered: map[int64]bool{1: true, 2: true}}
	d := New(fakeCommands{}, gate, answers, &fakeEscalator{})

	done := make(chan []core.OutboundMessage)
	go func() { done <- d.Handle(context.Background(), text(1, "slow")) }()

	require.Eventually(t, func() bool { return answers.calls.Load() == 1 }, time.Second, time.Millisecond)

	out := d.Handle(context.Background(), text(2, "fast"))
	assert.Equal(t, "b", out[0].Text)

	close(release)
	assert.Equal(t, "a", (<-done)[0].Text)
}

func TestSubmit_ClaimThenQuestionKeepsOrder(t *testing.T) {
	for i := 0; i < 50; i++ {
		userID := int64(100 + i)
		gate := &fakeGate{claimDelay: time.Millisecond}
		answers := &fakeAnswers{answers: map[string]string{"price": "10$"}}
		esc := &fakeEscalator{}
		d := New(fakeCommands{}, gate, answers, esc)

		replies := make(chan core.OutboundMessage, 2)
		deliver := func(out []core.OutboundMessage) {
			for _, m := range out {
				replies <- m
			}
		}

		d.Submit(context.Background(), core.InboundMessage{UserID: userID, Kind: core.KindIdentityClaim, Phone: "+71234567890"}, deliver)
		d.Submit(context.Background(), text(userID, "price"), deliver)

		assert.Equal(t, command.TextRegistered, (<-replies).Text)
		answer := <-replies
		require.Equal(t, "10$", answer.Text, "question overtook the claim on run %d", i)
		assert.Empty(t, esc.questions)
	}
}

func TestSubmit_OtherUsersNotQueuedBehindSlowUser(t *testing.T) {
	release := make(chan struct{})
	answers := &fakeAnswers{
		answers: map[string]string{"slow": "a", "fast": "b"},
		hook: func(text string) {
			if text == "slow" {
				<-release
			}
		},
	}
	gate := &fakeGate{registered: map[int64]bool{1: true, 2: true}}
	d := New(fakeCommands{}, gate, answers, &fakeEscalator{})

	slow := make(chan []core.OutboundMessage, 2)
	d.Submit(context.Background(), text(1, "slow"), func(out []core.OutboundMessage) { slow <- out })
	d.Submit(context.Background(), text(1, "fast"), func(out []core.OutboundMessage) { slow <- out })

	fast := make(chan []core.OutboundMessage, 1)
	d.Submit(context.Background(), text(2, "fast"), func(out []core.OutboundMessage) { fast <- out })
	assert.Equal(t, "b", (<-fast)[0].Text)

	close(release)
	assert.Equal(t, "a", (<-slow)[0].Text)
	assert.Equal(t, "b", (<-slow)[0].Text)
}

func TestSubmit_ForgetsIdleUsers(t *testing.T) {
	d := New(fakeCommands{}, &fakeGate{}, &fakeAnswers{}, &fakeEscalator{})
	d.Handle(context.Background(), text(1, "hi"))

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.queues) == 0
	}, time.Second, time.Millisecond)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestShutdown_WaitsForQueuedMessages(t *testing.T) {
	release := make(chan struct{})
	answers := &fakeAnswers{hook: func(string) { <-release }}
	d := New(fakeCommands{}, &fakeGate{registered: map[int64]bool{1: true}}, answers, &fakeEscalator{outcome: core.Outcome{Kind: core.OutcomeNotified}})

	var delivered atomic.Bool
	d.Submit(context.Background(), text(1, "q"), func([]core.OutboundMessage) { delivered.Store(true) })

	done := make(chan error, 1)
	go func() { done <- d.Shutdown(context.Background()) }()

	select {
	case <-done:
		t.Fatal("shutdown returned before the queued message finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.True(t, delivered.Load())
}

func TestSubmit_RecoversFromPanic(t *testing.T) {
	answers := &fakeAnswers{answers: map[string]string{"ok": "fine"}, hook: func(text string) {
		if text == "boom" {
			panic("lookup exploded")
		}
	}}
	d := New(fakeCommands{}, &fakeGate{registered: map[int64]bool{1: true}}, answers, &fakeEscalator{})

	assert.Empty(t, d.Handle(context.Background(), text(1, "boom")))
	out := d.Handle(context.Background(), text(1, "ok"))
	assert.Equal(t, "fine", out[0].Text)
}
