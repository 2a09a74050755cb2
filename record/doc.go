// Package record defines the keyed record store that the storefront core writes
// its shop aggregates through.
//
// The store is treated as a black box that supports only independent
// per-collection writes with eventual visibility. Backends live in
// sub-packages:
//
//   - [github.com/jacentio/storefront/record/memstore] - in-process store
//   - [github.com/jacentio/storefront/record/dynamo] - DynamoDB tables
//   - [github.com/jacentio/storefront/record/sqlstore] - relational store via gorm
//
// # Client
//
// Every backend implements [Client]:
//
//	type Client interface {
//	    Insert(ctx context.Context, collection string, rec Record) (Record, error)
//	    Update(ctx context.Context, collection, id string, partial Record) (Record, error)
//	    Delete(ctx context.Context, collection, id string) error
//	    Upsert(ctx context.Context, collection string, rec Record, conflict ...string) (Record, error)
//	    SelectWhere(ctx context.Context, collection string, filters ...Filter) ([]Record, error)
//	}
//
// Wrap a client with [WithTimeout] to bound each individual call.
//
// # Errors
//
// Backends return [*Error] values carrying a [Kind]:
//
//   - [SchemaMissing] - the target collection does not exist in the store
//   - [Transient] - timeouts and network failures, safe to retry
//   - [Permanent] - constraint violations and other rejections
//
// Use [KindOf] to classify any error, including ones a backend did not wrap.
package record
