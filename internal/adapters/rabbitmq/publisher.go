package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
)

// Message is the wire form of a ledger event. Amounts are minor units.
type Message struct {
	Kind         string    `json:"kind"`
	LedgerID     string    `json:"ledgerId"`
	DriverID     string    `json:"driverId"`
	DriverSource string    `json:"driverSource"`
	Day          string    `json:"day"`
	Amount       int64     `json:"amount"`
	Balance      int64     `json:"balance"`
	Version      int64     `json:"version"`
	At           time.Time `json:"at"`
	Actor        string    `json:"actor,omitempty"`
}

func NewMessage(e events.Event) Message {
	return Message{
		Kind:         string(e.Kind),
		LedgerID:     string(e.LedgerID),
		DriverID:     string(e.Driver.ID),
		DriverSource: string(e.Driver.Source),
		Day:          e.Day.Format("2006-01-02"),
		Amount:       int64(e.Amount),
		Balance:      int64(e.Balance),
		Version:      e.Version,
		At:           e.At.UTC(),
		Actor:        string(e.Actor),
	}
}

// MessageID is stable per ledger version so consumers can drop redeliveries.
func MessageID(e events.Event) string {
	return fmt.Sprintf("%s/%d/%s", e.LedgerID, e.Version, e.Kind)
}

// Publisher implements events.Publisher. The routing key is the event kind.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(NewMessage(e))
	if err != nil {
		return fmt.Errorf("rabbitmq: encode event: %w", err)
	}
	return p.client.publish(ctx, string(e.Kind), MessageID(e), body)
}
