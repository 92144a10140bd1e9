// Package store provides persistence implementations for hrflow.
// The Store interface is defined in the parent hrflow package
// (../store_interface.go) to avoid import cycles between hrflow
// and store.
//
// This package contains concrete implementations:
//   - DynamoDBStore: AWS DynamoDB single-table backend
//   - RedisStore: Redis backend
//   - MemoryStore: In-memory backend for tests and local runs
//
// The DynamoDB item layout is defined in schema.go.
package store
