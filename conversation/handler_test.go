package conversation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"pagobot/model"
	"strings"
	"testing"
)

func TestSenderID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"5217771234567@c.us", "5217771234567@c.us"},
		{"+52 1 777 123 4567", "5217771234567@c.us"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SenderID(tc.in); got != tc.want {
			t.Errorf("SenderID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStateHandlers(t *testing.T) {
	store := NewMemoryStore()
	const sender = "5217771234567@c.us"
	if err := store.SetState(sender, model.StateAwaitingPaymentProof); err != nil {
		t.Fatal(err)
	}
	if err := store.SetLinkedClient(sender, "Ana", "+5217771234567"); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	GetStateHandler(store)(rr, httptest.NewRequest(http.MethodGet, "/api/state/+5217771234567", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var st model.ConversationState
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.State != model.StateAwaitingPaymentProof || st.LinkedClientName != "Ana" {
		t.Errorf("state = %+v", st)
	}

	rr = httptest.NewRecorder()
	ResetStateHandler(store)(rr, httptest.NewRequest(http.MethodPost, "/api/state/reset", strings.NewReader(`{"sender":"5217771234567"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rr.Code)
	}
	got, _ := store.Get(sender)
	if got.State != model.StateInitial || got.LinkedClientNumber != "" {
		t.Errorf("after reset = %+v", got)
	}

	rr = httptest.NewRecorder()
	GetStateHandler(store)(rr, httptest.NewRequest(http.MethodGet, "/api/state/5210000000000", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown sender status = %d, want 404", rr.Code)
	}
}
