package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"quadvote/contexts/governance/quadratic-voting/adapters/memory"
	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

type recordingPublisher struct {
	topics []string
	failOn string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if topic == p.failOn {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func seedEvents(t *testing.T, store *memory.Store) {
	t.Helper()
	envelope := func(eventType string) func(entities.DAO) (ports.EventEnvelope, error) {
		return func(dao entities.DAO) (ports.EventEnvelope, error) {
			return ports.EventEnvelope{EventType: eventType, PartitionKey: dao.DAOID, OccurredAt: time.Now().UTC()}, nil
		}
	}
	for _, authority := range []string{"admin-1", "admin-2"} {
		if _, err := store.CreateDAO(context.Background(), entities.DAO{
			DAOID:     entities.DAOIDFor(authority),
			Name:      authority,
			Authority: authority,
		}, envelope("dao.created")); err != nil {
			t.Fatalf("seed dao failed: %v", err)
		}
	}
	if _, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: entities.DAOIDFor("admin-1")},
		func(p entities.Proposal) (ports.EventEnvelope, error) {
			return ports.EventEnvelope{EventType: "proposal.created", PartitionKey: p.DAOID}, nil
		}); err != nil {
		t.Fatalf("seed proposal failed: %v", err)
	}
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore()
	seedEvents(t, store)
	publisher := &recordingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, BatchSize: 10}

	published, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if published != 3 || len(publisher.topics) != 3 || publisher.topics[2] != "proposal.created" {
		t.Fatalf("unexpected publish result %d %v", published, publisher.topics)
	}
	published, err = relay.RunOnce(context.Background())
	if err != nil || published != 0 {
		t.Fatalf("expected empty second cycle, got %d (%v)", published, err)
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	seedEvents(t, store)
	publisher := &recordingPublisher{failOn: "proposal.created"}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 10}

	published, err := relay.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected publish failure")
	}
	if published != 2 {
		t.Fatalf("expected 2 rows published before failure, got %d", published)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 || pending[0].EventType != "proposal.created" {
		t.Fatalf("expected failed row to stay pending, got %+v", pending)
	}
}
