package registry

import (
	"errors"
	"fmt"
	"os"
	"pagobot/model"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func sampleRecord() model.ClientRecord {
	return model.ClientRecord{
		Name:        "María López",
		PayDay:      10,
		Amount:      "350.00",
		CountryFlag: "MX",
		Payments:    []model.PaymentEntry{},
	}
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "clients.json")),
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			if err := s.Upsert("+5217771234567", rec); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			got, err := s.Get("+5217771234567")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got == nil {
				t.Fatal("expected record, got nil")
			}
			want := rec
			want.Normalize()
			if !reflect.DeepEqual(*got, want) {
				t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", *got, want)
			}
			if got.Payments == nil || len(got.Payments) != 0 {
				t.Fatalf("expected empty payments, got %#v", got.Payments)
			}
		})
	}
}

func TestRoundTripWithHistory(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			rec.Payments = append(rec.Payments,
				model.PaymentEntry{Amount: "350.00", Date: "2026-09-10", Confirmed: true, ProofID: "ABC"},
				model.PaymentEntry{Amount: "350.00", Date: "2026-10-10"},
			)
			rec.ProofHistory = []model.ProofRecord{{
				Timestamp:  time.Date(2026, 9, 10, 12, 30, 0, 0, time.UTC),
				StorageRef: "file:///proofs/ABC.jpg",
			}}
			if err := s.Upsert("+5215550000000", rec); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			got, err := s.Get("+5215550000000")
			if err != nil || got == nil {
				t.Fatalf("get: %v %v", got, err)
			}
			if !reflect.DeepEqual(*got, rec) {
				t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", *got, rec)
			}
		})
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get("+1000")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil, got %#v", got)
			}
			if err := s.Delete("+1000"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"+3", "+1", "+2"} {
				if err := s.Upsert(k, sampleRecord()); err != nil {
					t.Fatalf("upsert %s: %v", k, err)
				}
			}
			if err := s.Delete("+2"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			list, err := s.List()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].Key != "+1" || list[1].Key != "+3" {
				t.Fatalf("unexpected list order: %#v", list)
			}
		})
	}
}

func TestFindShortCircuits(t *testing.T) {
	s := NewMemoryStore()
	for _, k := range []string{"+1", "+2", "+3"} {
		_ = s.Upsert(k, sampleRecord())
	}
	calls := 0
	c, err := s.Find(func(model.Client) bool {
		calls++
		return true
	})
	if err != nil || c == nil {
		t.Fatalf("find: %v %v", c, err)
	}
	if c.Key != "+1" || calls != 1 {
		t.Fatalf("expected first key after one call, got %s after %d", c.Key, calls)
	}
}

func TestFindNoMatchAndLoadErrors(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Upsert("+1", sampleRecord()); err != nil {
				t.Fatal(err)
			}
			c, err := s.Find(func(model.Client) bool { return false })
			if err != nil || c != nil {
				t.Fatalf("find = %v, %v; want nil, nil", c, err)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "clients.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Find(func(model.Client) bool { return true }); err == nil {
		t.Fatal("expected an error from a corrupt registry file")
	}
}

func TestFindByNameCaseInsensitiveWithDuplicates(t *testing.T) {
	s := NewMemoryStore()
	a := sampleRecord()
	a.Name = "JOSÉ PÉREZ"
	b := sampleRecord()
	b.Name = "josé pérez"
	c := sampleRecord()
	c.Name = "Ana"
	_ = s.Upsert("+52200", b)
	_ = s.Upsert("+52100", a)
	_ = s.Upsert("+52300", c)

	got, dups, err := FindByName(s, " José Pérez ")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if got.Key != "+52100" {
		t.Fatalf("expected first key +52100, got %s", got.Key)
	}
	if len(dups) != 1 || dups[0] != "+52200" {
		t.Fatalf("expected duplicate +52200, got %v", dups)
	}

	if _, _, err := FindByName(s, "Nadie"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := FindByName(s, "José"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("partial name must not match, got %v", err)
	}
}

// Two writers touching different keys must both survive the
// read-modify-write cycle of the document store.
func TestFileStoreConcurrentUpsertsDifferentKeys(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "clients.json"))
	const perWriter = 20
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				rec := sampleRecord()
				rec.Name = fmt.Sprintf("writer-%d-%d", w, i)
				if err := s.Upsert(fmt.Sprintf("+%d%03d", w+1, i), rec); err != nil {
					t.Errorf("upsert: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2*perWriter {
		t.Fatalf("expected %d records, got %d", 2*perWriter, len(list))
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"5217771234567@c.us", "+5217771234567"},
		{"+52 1 777 123 4567", "+5217771234567"},
		{"5217771234567:12@s.whatsapp.net", "+5217771234567"},
		{"  ", ""},
		{"abc", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := ChatID("+5217771234567"); got != "5217771234567@c.us" {
		t.Errorf("ChatID = %q", got)
	}
}
