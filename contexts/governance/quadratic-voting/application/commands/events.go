package commands

import (
	"encoding/json"
	"time"

	"quadvote/contexts/governance/quadratic-voting/ports"
)

const (
	EventDAOCreated      = "dao.created"
	EventProposalCreated = "proposal.created"
	EventVoteCast        = "vote.cast"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	daoID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// All ledger events are partitioned by DAO so proposal sequences and the
	// votes on them arrive in commit order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	envelope := ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "quadratic-voting",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "dao_id",
		PartitionKey:     daoID,
		Data:             payload,
	}
	if err := envelope.Validate(); err != nil {
		return ports.EventEnvelope{}, err
	}
	return envelope, nil
}
