package reminder

import (
	"context"
	"errors"
	"pagobot/conversation"
	"pagobot/model"
	"pagobot/transport"
	"strings"
	"testing"
	"time"
)

func newTestDispatcher(now time.Time) (*Dispatcher, *transport.Recorder, *conversation.MemoryStore) {
	rec := transport.NewRecorder()
	states := conversation.NewMemoryStore()
	d := NewDispatcher(rec, states, NewInstructions(nil), 0)
	d.now = func() time.Time { return now }
	return d, rec, states
}

func client(key, name string, payDay int) model.Client {
	return model.Client{Key: key, ClientRecord: model.ClientRecord{
		Name: name, PayDay: payDay, Amount: "350", CountryFlag: "MX", Payments: []model.PaymentEntry{},
	}}
}

func TestSendReminderSuspendedIsRefused(t *testing.T) {
	d, rec, states := newTestDispatcher(time.Now())
	c := client("+5217771234567", "Ana", 10)
	c.Suspended = true

	out, err := d.SendReminder(context.Background(), c)
	if !errors.Is(err, ErrClientSuspended) {
		t.Fatalf("expected ErrClientSuspended, got %v", err)
	}
	if out.Status != StatusSuspended {
		t.Fatalf("expected suspended outcome, got %#v", out)
	}
	if len(rec.Sent()) != 0 {
		t.Fatalf("transport must not be called, got %d sends", len(rec.Sent()))
	}
	if st, _ := states.Get("5217771234567@c.us"); st != nil {
		t.Fatalf("state must not be created, got %#v", st)
	}
}

func TestSendReminderTransitionsState(t *testing.T) {
	d, rec, states := newTestDispatcher(time.Now())
	c := client("+5217771234567", "Ana", 10)

	out, err := d.SendReminder(context.Background(), c)
	if err != nil || out.Status != StatusSent {
		t.Fatalf("send: %#v %v", out, err)
	}
	sent := rec.SentTo("5217771234567@c.us")
	if len(sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sent))
	}
	msg := sent[0].Message
	if !strings.Contains(msg.Text, "Ana") || !strings.Contains(msg.Text, "350") || !strings.Contains(msg.Text, "SPEI") {
		t.Fatalf("unexpected reminder text %q", msg.Text)
	}
	if len(msg.Buttons) != 2 || msg.Buttons[0].ID != ButtonPaid || msg.Buttons[1].ID != ButtonHelp {
		t.Fatalf("unexpected buttons %#v", msg.Buttons)
	}

	st, _ := states.Get("5217771234567@c.us")
	if st == nil || st.State != model.StateAwaitingPaymentResponse {
		t.Fatalf("expected AWAITING_PAYMENT_RESPONSE, got %#v", st)
	}
	if st.LinkedClientName != "Ana" || st.LinkedClientNumber != "+5217771234567" {
		t.Fatalf("linked client not stored: %#v", st)
	}
}

func TestSendReminderFailureKeepsState(t *testing.T) {
	d, rec, states := newTestDispatcher(time.Now())
	rec.FailSendsTo("5217771234567@c.us", transport.ErrUnreachable)

	out, err := d.SendReminder(context.Background(), client("+5217771234567", "Ana", 10))
	if !errors.Is(err, transport.ErrUnreachable) || out.Status != StatusFailed {
		t.Fatalf("expected unreachable failure, got %#v %v", out, err)
	}
	if st, _ := states.Get("5217771234567@c.us"); st != nil {
		t.Fatalf("state must not change on failure, got %#v", st)
	}
}

// Scenario: a client due today with no payments this month is reminded and
// left waiting for a response.
func TestBatchDueTodayIncludesClient(t *testing.T) {
	now := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)
	d, rec, states := newTestDispatcher(now)
	clients := []model.Client{
		client("+5217771234567", "Ana", 10),
		client("+5217770000000", "Beto", 11),
	}

	report := d.RunBatch(context.Background(), clients, Rule{Offset: 0})
	if report.Sent != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(rec.Sent()) != 1 || rec.Sent()[0].To != "5217771234567@c.us" {
		t.Fatalf("unexpected sends %#v", rec.Sent())
	}
	st, _ := states.Get("5217771234567@c.us")
	if st == nil || st.State != model.StateAwaitingPaymentResponse {
		t.Fatalf("expected AWAITING_PAYMENT_RESPONSE, got %#v", st)
	}
}

func TestBatchSkipsSuspendedAndContinuesOnFailure(t *testing.T) {
	now := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)
	d, rec, _ := newTestDispatcher(now)
	d.delay = time.Millisecond
	suspended := client("+521", "Sus", 10)
	suspended.Suspended = true
	clients := []model.Client{
		suspended,
		client("+522", "Falla", 10),
		client("+523", "Ok", 10),
	}
	rec.FailSendsTo("522@c.us", errors.New("socket closed"))

	report := d.RunBatch(context.Background(), clients, Rule{})
	if report.Sent != 1 || report.Failed != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %#v", report.Outcomes)
	}
	if got := rec.Sent(); len(got) != 1 || got[0].To != "523@c.us" {
		t.Fatalf("unexpected sends %#v", got)
	}
}

func TestBatchSpacesSends(t *testing.T) {
	now := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)
	d, rec, _ := newTestDispatcher(now)
	d.delay = 30 * time.Millisecond
	clients := []model.Client{client("+521", "A", 10), client("+522", "B", 10), client("+523", "C", 10)}

	report := d.RunBatch(context.Background(), clients, Rule{})
	if report.Sent != 3 {
		t.Fatalf("unexpected report %#v", report)
	}
	sent := rec.Sent()
	if len(sent) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(sent))
	}
	for i := 1; i < len(sent); i++ {
		if gap := sent[i].At.Sub(sent[i-1].At); gap < d.delay {
			t.Errorf("send %d followed send %d after %v, want at least %v", i, i-1, gap, d.delay)
		}
	}
}

func TestBatchStopsWhenCancelled(t *testing.T) {
	now := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)
	d, rec, _ := newTestDispatcher(now)
	d.delay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.RunBatch(ctx, []model.Client{client("+521", "A", 10), client("+522", "B", 10)}, Rule{})
	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(rec.Sent()) != 1 {
		t.Fatalf("expected only the first send, got %d", len(rec.Sent()))
	}
}

func TestRuleDue(t *testing.T) {
	now := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)
	rec := func(day int) model.ClientRecord { return client("+1", "x", day).ClientRecord }

	if !(Rule{Offset: 3}).Due(rec(13), now) {
		t.Error("due in 3 days should match pay day 13")
	}
	if !(Rule{Offset: -5}).Due(rec(5), now) {
		t.Error("overdue by 5 days should match pay day 5")
	}
	if (Rule{}).Due(rec(13), now) {
		t.Error("pay day 13 is not due today")
	}

	sep30 := time.Date(2026, 9, 30, 9, 0, 0, 0, time.UTC)
	if !(Rule{}).Due(rec(31), sep30) {
		t.Error("pay day 31 should fall on the last day of September")
	}

	paid := rec(10)
	paid.Payments = []model.PaymentEntry{{Amount: "350", Date: "2026-10-02", Confirmed: true}}
	if (Rule{}).Due(paid, now) {
		t.Error("client confirmed this month must be excluded")
	}
	paid.Payments = []model.PaymentEntry{{Amount: "350", Date: "2026-09-10", Confirmed: true}}
	if !(Rule{}).Due(paid, now) {
		t.Error("payment from last month must not exclude the client")
	}
	unconfirmed := rec(10)
	unconfirmed.Payments = []model.PaymentEntry{{Amount: "350", Date: "2026-10-02"}}
	if !(Rule{}).Due(unconfirmed, now) {
		t.Error("unconfirmed payment must not exclude the client")
	}

	pending := rec(10)
	pending.PendingSetup = true
	if (Rule{}).Due(pending, now) {
		t.Error("pending setup records are never due")
	}
}

func TestInstructions(t *testing.T) {
	in := NewInstructions(map[string]string{"pe": "Yape al 999"})
	if got := in.For("🇲🇽"); !strings.Contains(got, "SPEI") {
		t.Errorf("emoji flag lookup failed: %q", got)
	}
	if got := in.For("PE"); got != "Yape al 999" {
		t.Errorf("override not applied: %q", got)
	}
	if got := in.For("ZZ"); got != genericInstructions {
		t.Errorf("unknown flag should fall back, got %q", got)
	}
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	before := time.Date(2026, 10, 10, 8, 30, 0, 0, loc)
	if got := nextRun(before, 9); !got.Equal(time.Date(2026, 10, 10, 9, 0, 0, 0, loc)) {
		t.Errorf("expected same day, got %s", got)
	}
	after := time.Date(2026, 10, 10, 9, 0, 0, 0, loc)
	if got := nextRun(after, 9); !got.Equal(time.Date(2026, 10, 11, 9, 0, 0, 0, loc)) {
		t.Errorf("expected next day, got %s", got)
	}
}
