// Package quadraticvoting implements the quadratic-voting ledger inside the
// governance context.
//
// The module owns DAO registration, sequential proposal creation and one
// vote per voter per proposal weighted by the integer square root of the
// voter's token balance. Each state transition commits atomically together
// with its outbox event; adapters provide memory, postgres and sqlite
// persistence behind the same ports.
package quadraticvoting
