package inbound

import (
	"context"
	"pagobot/conversation"
	"pagobot/decision"
	"pagobot/model"
	"pagobot/proof"
	"pagobot/proofstore"
	"pagobot/registry"
	"pagobot/reminder"
	"pagobot/transport"
	"strings"
	"testing"
	"time"
)

const (
	approver  = "5215550000000@c.us"
	clientKey = "+5217771234567"
	sender    = "5217771234567@c.us"
)

type countingIngester struct{ calls int }

func (c *countingIngester) Ingest(context.Context, model.InboundMessage) (bool, error) {
	c.calls++
	return true, nil
}

type noDecisions struct{}

func (noDecisions) IsApprover(from string) bool { return from == approver }
func (noDecisions) OnApproverReply(context.Context, model.InboundMessage) (bool, error) {
	return false, nil
}

func newTestRouter(t *testing.T) (*Router, *transport.Recorder, *registry.MemoryStore, *conversation.MemoryStore, *countingIngester) {
	t.Helper()
	rec := transport.NewRecorder()
	clients := registry.NewMemoryStore()
	states := conversation.NewMemoryStore()
	ing := &countingIngester{}
	if err := clients.Upsert(clientKey, model.ClientRecord{Name: "Ana López", PayDay: 10, Amount: "500", CountryFlag: "MX"}); err != nil {
		t.Fatal(err)
	}
	return NewRouter(rec, clients, states, noDecisions{}, ing, approver), rec, clients, states, ing
}

func awaitResponse(t *testing.T, states *conversation.MemoryStore) {
	t.Helper()
	if err := states.SetState(sender, model.StateAwaitingPaymentResponse); err != nil {
		t.Fatal(err)
	}
	if err := states.SetLinkedClient(sender, "Ana López", clientKey); err != nil {
		t.Fatal(err)
	}
}

func text(body string) model.InboundMessage {
	return model.InboundMessage{ID: "M-" + body, ChatID: sender, From: sender, Body: body}
}

func stateOf(t *testing.T, states *conversation.MemoryStore, id string) model.State {
	t.Helper()
	st, err := states.Get(id)
	if err != nil || st == nil {
		t.Fatalf("Get(%s) = %v, %v", id, st, err)
	}
	return st.State
}

func TestHelpReplyEscalates(t *testing.T) {
	r, rec, _, states, ing := newTestRouter(t)
	awaitResponse(t, states)

	r.Handle(context.Background(), text("2"))

	if got := stateOf(t, states, sender); got != model.StateActive {
		t.Errorf("state = %s, want ACTIVE", got)
	}
	esc := rec.SentTo(approver)
	if len(esc) != 1 || !strings.Contains(esc[0].Message.Text, "Ana López") {
		t.Errorf("approver messages = %+v", esc)
	}
	if ing.calls != 0 {
		t.Errorf("proof ingestion ran %d times, want 0", ing.calls)
	}
	if n := len(rec.SentTo(sender)); n != 1 {
		t.Errorf("client got %d messages, want 1", n)
	}
}

func TestHelpReplyForSuspendedClientIsNotEscalated(t *testing.T) {
	r, rec, clients, states, _ := newTestRouter(t)
	awaitResponse(t, states)
	c, _ := clients.Get(clientKey)
	c.Suspended = true
	if err := clients.Upsert(clientKey, *c); err != nil {
		t.Fatal(err)
	}

	r.Handle(context.Background(), text("Necesito ayuda"))

	if n := len(rec.SentTo(approver)); n != 0 {
		t.Errorf("approver got %d messages, want 0", n)
	}
	if got := stateOf(t, states, sender); got != model.StateActive {
		t.Errorf("state = %s, want ACTIVE", got)
	}
}

func TestResponseStateMachine(t *testing.T) {
	cases := []struct {
		name   string
		msg    model.InboundMessage
		want   model.State
		ingest int
	}{
		{"one", text("1"), model.StateAwaitingPaymentProof, 0},
		{"paid phrase", text("He realizado el pago"), model.StateAwaitingPaymentProof, 0},
		{"paid button", model.InboundMessage{ID: "B", From: sender, ButtonID: reminder.ButtonPaid}, model.StateAwaitingPaymentProof, 0},
		{"two", text(" 2 "), model.StateActive, 0},
		{"help button", model.InboundMessage{ID: "H", From: sender, ButtonID: reminder.ButtonHelp}, model.StateActive, 0},
		{"other number", text("3"), model.StateAwaitingPaymentResponse, 0},
		{"long number", text("12"), model.StateAwaitingPaymentResponse, 0},
		{"free text", text("hola, cuánto debo?"), model.StateAwaitingPaymentResponse, 1},
		{"paraphrase is not a paid reply", text("ya realicé el pago"), model.StateAwaitingPaymentResponse, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, rec, _, states, ing := newTestRouter(t)
			awaitResponse(t, states)

			r.Handle(context.Background(), tc.msg)

			if got := stateOf(t, states, sender); got != tc.want {
				t.Errorf("state = %s, want %s", got, tc.want)
			}
			if ing.calls != tc.ingest {
				t.Errorf("ingest calls = %d, want %d", ing.calls, tc.ingest)
			}
			if tc.want == model.StateAwaitingPaymentResponse && tc.ingest == 0 {
				sent := rec.SentTo(sender)
				if len(sent) != 1 || sent[0].Message.Text != msgReprompt {
					t.Errorf("expected a re-prompt, got %+v", sent)
				}
			}
		})
	}
}

func TestUnknownSenderGetsInitialState(t *testing.T) {
	r, _, _, states, ing := newTestRouter(t)
	r.Handle(context.Background(), model.InboundMessage{ID: "X", From: "5219990000000@c.us", Body: "1"})
	if got := stateOf(t, states, "5219990000000@c.us"); got != model.StateInitial {
		t.Errorf("state = %s, want INITIAL", got)
	}
	if ing.calls != 1 {
		t.Errorf("ingest calls = %d, want 1", ing.calls)
	}
}

func TestIgnoresGroupAndSelfMessages(t *testing.T) {
	r, rec, _, states, ing := newTestRouter(t)
	r.Handle(context.Background(), model.InboundMessage{ID: "G", From: sender, IsGroup: true, Body: "2"})
	r.Handle(context.Background(), model.InboundMessage{ID: "S", From: sender, FromMe: true, Body: "2"})
	if st, _ := states.Get(sender); st != nil {
		t.Errorf("state created for ignored messages: %+v", st)
	}
	if ing.calls != 0 || len(rec.Sent()) != 0 {
		t.Errorf("ignored messages had effects")
	}
}

type panickingIngester struct{}

func (panickingIngester) Ingest(context.Context, model.InboundMessage) (bool, error) {
	panic("boom")
}

func TestHandleRecoversPanic(t *testing.T) {
	r := NewRouter(transport.NewRecorder(), registry.NewMemoryStore(), conversation.NewMemoryStore(), noDecisions{}, panickingIngester{}, approver)
	r.Handle(context.Background(), text("hola"))
}

func TestRunStopsWhenStreamCloses(t *testing.T) {
	r, _, _, states, _ := newTestRouter(t)
	awaitResponse(t, states)
	msgs := make(chan model.InboundMessage, 1)
	msgs <- text("1")
	close(msgs)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), msgs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}
	if got := stateOf(t, states, sender); got != model.StateAwaitingPaymentProof {
		t.Errorf("state = %s, want AWAITING_PAYMENT_PROOF", got)
	}
}

// TestPaymentCycle drives reminder, reply, proof and approval through the
// real components.
func TestPaymentCycle(t *testing.T) {
	ctx := context.Background()
	rec := transport.NewRecorder()
	clients := registry.NewMemoryStore()
	states := conversation.NewMemoryStore()
	if err := clients.Upsert(clientKey, model.ClientRecord{Name: "Ana López", PayDay: 18, Amount: "500", CountryFlag: "MX"}); err != nil {
		t.Fatal(err)
	}
	dispatcher := reminder.NewDispatcher(rec, states, reminder.NewInstructions(nil), 0)
	decisions := decision.NewHandler(rec, clients, states, proofstore.NewLocalStore(t.TempDir()), approver)
	pipeline := proof.NewPipeline(rec, clients, states, approver)
	r := NewRouter(rec, clients, states, decisions, pipeline, approver)

	c, _ := clients.Get(clientKey)
	if _, err := dispatcher.SendReminder(ctx, model.Client{Key: clientKey, ClientRecord: *c}); err != nil {
		t.Fatal(err)
	}
	r.Handle(ctx, model.InboundMessage{ID: "R1", From: sender, ButtonID: reminder.ButtonPaid})
	if got := stateOf(t, states, sender); got != model.StateAwaitingPaymentProof {
		t.Fatalf("after reply state = %s", got)
	}

	proofMsg := model.InboundMessage{
		ID: "P1", ChatID: sender, From: sender, Body: "aquí mi recibo",
		Media: &model.MediaInfo{Kind: model.MediaImage, MimeType: "image/jpeg"},
	}
	rec.SetMedia("P1", []byte("jpeg"))
	rec.AddHistory(sender, proofMsg)
	r.Handle(ctx, proofMsg)

	fwd := rec.SentTo(approver)
	if len(fwd) != 1 || len(fwd[0].Message.Buttons) != 2 {
		t.Fatalf("forward = %+v", fwd)
	}
	accept := fwd[0].Message.Buttons[0].ID
	for i := 0; i < 2; i++ {
		r.Handle(ctx, model.InboundMessage{ID: "A", From: approver, ButtonID: accept})
	}

	got, _ := clients.Get(clientKey)
	if len(got.Payments) != 1 || !got.Payments[0].Confirmed || got.Payments[0].ProofID != "P1" {
		t.Errorf("payments = %+v", got.Payments)
	}
	if st := stateOf(t, states, sender); st != model.StateActive {
		t.Errorf("final state = %s, want ACTIVE", st)
	}
}

func TestApproverChatterIsNotIngested(t *testing.T) {
	r, _, _, states, ing := newTestRouter(t)
	r.Handle(context.Background(), model.InboundMessage{
		ID: "AP", From: approver, Body: "pago de prueba",
		Media: &model.MediaInfo{Kind: model.MediaImage},
	})
	if ing.calls != 0 {
		t.Errorf("ingest calls = %d, want 0", ing.calls)
	}
	if st, _ := states.Get(approver); st != nil {
		t.Errorf("approver got a conversation: %+v", st)
	}
}
