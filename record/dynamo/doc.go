// Package dynamo provides a DynamoDB-backed record.Client.
//
// Each collection maps to a table keyed by a string "id". Records carry
// ORM-managed fields:
//
//   - created_at / updated_at - RFC 3339 timestamps
//   - version - incremented on every write
//   - ttl - set on delete; soft-deleted records are hidden from reads and
//     later expired by DynamoDB's TTL sweeper
//
// # Natural keys
//
// Tables listed in [Config.NaturalKeys] get an entry in the natural-key table
// for every insert, written in the same transaction as the record itself.
// [Store.Upsert] resolves its conflict fields through that table, so a retried
// create replaces the first write instead of duplicating it.
//
// # Reads
//
// SelectWhere uses a Query when one of its filters targets an attribute with
// a configured index, a consistent GetItem when it filters by id alone, and a
// Scan otherwise. The TTL filter is always merged in.
package dynamo
