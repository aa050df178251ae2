package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
)

func TestNewMessage_WireShape(t *testing.T) {
	t.Parallel()

	wat := time.FixedZone("WAT", 3600)
	e := events.Event{
		Kind:     events.KindEntryAppended,
		LedgerID: "l-1",
		Driver:   domain.DriverRef{ID: "c1", Source: domain.SourceSpecialized},
		Day:      time.Date(2024, 3, 15, 0, 0, 0, 0, wat),
		Amount:   -7000,
		Balance:  62000,
		Version:  3,
		At:       time.Date(2024, 3, 15, 18, 0, 0, 0, wat),
		Actor:    "dispatcher-1",
	}

	b, err := json.Marshal(NewMessage(e))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["kind"] != "ledger.entry_appended" || got["day"] != "2024-03-15" || got["driverSource"] != "specialized" {
		t.Fatalf("message=%v", got)
	}
	if got["amount"] != float64(-7000) || got["balance"] != float64(62000) || got["at"] != "2024-03-15T17:00:00Z" {
		t.Fatalf("message=%v", got)
	}
	if id := MessageID(e); id != "l-1/3/ledger.entry_appended" {
		t.Fatalf("MessageID=%q", id)
	}
}
