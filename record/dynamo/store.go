package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/record"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Fields maintained by the store and never taken from caller input.
const (
	naturalPKAttr = "_natural_pk"
	constraintSK  = "CONSTRAINT"
)

var managed = map[string]bool{
	"id": true, "version": true, "created_at": true, "updated_at": true,
	ttlAttr: true, naturalPKAttr: true,
}

// Store implements record.Client on DynamoDB.
type Store struct {
	client API
	config Config

	now   func() time.Time
	newID func() string
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

var _ record.Client = (*Store)(nil)

// Insert writes a new record, assigning an id when none is given.
func (s *Store) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	row := s.stamp(rec, "")
	item, err := attributevalue.MarshalMap(map[string]any(row))
	if err != nil {
		return nil, record.NewError(record.Permanent, "insert", table, fmt.Errorf("marshal: %w", err))
	}

	fields, ok := s.config.NaturalKeys[table]
	values, complete := naturalValues(row, fields)
	if !ok || !complete {
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		if err != nil {
			return nil, s.mapConditionError("insert", table, err, record.ErrAlreadyExists)
		}
		return decodeItem(item)
	}

	pk := natkey.ConstraintPK(table, fields, values)
	item[naturalPKAttr] = &types.AttributeValueMemberS{Value: pk}
	// A key released by a soft delete may be taken before TTL purges it.
	kb := newExprBuilder()
	keyCond := "attribute_not_exists(pk) OR " + kb.expired(s.now())
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                 aws.String(s.config.KeyTable),
				Item:                      s.keyItem(pk, table, row.ID(), fields),
				ConditionExpression:       aws.String(keyCond),
				ExpressionAttributeNames:  kb.exprNames(),
				ExpressionAttributeValues: kb.exprValues(),
			}},
			{Put: &types.Put{
				TableName:           aws.String(table),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
		},
	})
	if err != nil {
		return nil, s.mapInsertTransactionError(table, err)
	}
	return decodeItem(item)
}

// Update applies a partial change to an existing, non-deleted record and
// returns the full record as stored.
func (s *Store) Update(ctx context.Context, table, id string, partial record.Record) (record.Record, error) {
	b := newExprBuilder()
	setExpr, err := buildSet(b, partial, s.now())
	if err != nil {
		return nil, record.NewError(record.Permanent, "update", table, err)
	}
	cond := "attribute_exists(id) AND " + b.alive(s.now())

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(setExpr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  b.exprNames(),
		ExpressionAttributeValues: b.exprValues(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, s.mapConditionError("update", table, err, record.ErrNotFound)
	}
	return decodeItem(out.Attributes)
}

// Delete soft-deletes a record by setting its TTL. Deleting a missing or
// already deleted record is not an error.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	b := newExprBuilder()
	t := b.name(ttlAttr)
	v := b.name("version")
	expr := fmt.Sprintf("SET %s = %s, %s = if_not_exists(%s, %s) + %s",
		t, b.value(epoch(s.now())), v, v, b.value(num(0)), b.value(num(1)))

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id) AND attribute_not_exists(" + t + ")"),
		ExpressionAttributeNames:  b.exprNames(),
		ExpressionAttributeValues: b.exprValues(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return classify("delete", table, err)
	}

	// Release the natural key so a later create with the same key succeeds.
	if pk, ok := out.Attributes[naturalPKAttr].(*types.AttributeValueMemberS); ok {
		return s.expireKey(ctx, table, pk.Value)
	}
	return nil
}

// Upsert writes rec, replacing the record that shares its conflict fields.
// With no conflict fields the record id is the key.
func (s *Store) Upsert(ctx context.Context, table string, rec record.Record, conflict ...string) (record.Record, error) {
	if len(conflict) == 0 || (len(conflict) == 1 && conflict[0] == "id") {
		return s.upsertByID(ctx, table, rec)
	}

	values, complete := naturalValues(rec, conflict)
	if !complete {
		return nil, record.NewError(record.Permanent, "upsert", table,
			fmt.Errorf("conflict fields %v must all be set", conflict))
	}
	pk := natkey.ConstraintPK(table, conflict, values)

	existing, err := s.resolveKey(ctx, table, pk)
	if err != nil {
		return nil, err
	}

	row := s.stamp(rec, existing.String("created_at"))
	if id := existing.ID(); id != "" {
		row["id"] = id
		row["version"] = int(existing.Float("version")) + 1
	}
	item, err := attributevalue.MarshalMap(map[string]any(row))
	if err != nil {
		return nil, record.NewError(record.Permanent, "upsert", table, fmt.Errorf("marshal: %w", err))
	}
	item[naturalPKAttr] = &types.AttributeValueMemberS{Value: pk}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName: aws.String(s.config.KeyTable),
				Item:      s.keyItem(pk, table, row.ID(), conflict),
			}},
			{Put: &types.Put{
				TableName: aws.String(table),
				Item:      item,
			}},
		},
	})
	if err != nil {
		return nil, s.mapInsertTransactionError(table, err)
	}
	return decodeItem(item)
}

func (s *Store) upsertByID(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	row := s.stamp(rec, "")
	if id := rec.ID(); id != "" {
		existing, err := s.get(ctx, "upsert", table, id)
		if err != nil && !errors.Is(err, record.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			row["created_at"] = existing.String("created_at")
			row["version"] = int(existing.Float("version")) + 1
		}
	}
	item, err := attributevalue.MarshalMap(map[string]any(row))
	if err != nil {
		return nil, record.NewError(record.Permanent, "upsert", table, fmt.Errorf("marshal: %w", err))
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}); err != nil {
		return nil, classify("upsert", table, err)
	}
	return decodeItem(item)
}

// SelectWhere returns the live records matching every filter.
func (s *Store) SelectWhere(ctx context.Context, table string, filters ...record.Filter) ([]record.Record, error) {
	if len(filters) == 1 && filters[0].Field == "id" {
		id := record.Record{"id": filters[0].Value}.String("id")
		rec, err := s.get(ctx, "select", table, id)
		if errors.Is(err, record.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []record.Record{rec}, nil
	}

	b := newExprBuilder()
	keyIdx, index := s.indexFor(table, filters)

	var conds []string
	var keyCond string
	for i, f := range filters {
		av, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return nil, record.NewError(record.Permanent, "select", table, fmt.Errorf("marshal filter %s: %w", f.Field, err))
		}
		c := b.name(f.Field) + " = " + b.value(av)
		if i == keyIdx {
			keyCond = c
			continue
		}
		conds = append(conds, c)
	}
	conds = append(conds, b.alive(s.now()))
	filterExpr := strings.Join(conds, " AND ")

	var raws []map[string]types.AttributeValue
	if index != "" {
		p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
			TableName:                 aws.String(table),
			IndexName:                 aws.String(index),
			KeyConditionExpression:    aws.String(keyCond),
			FilterExpression:          aws.String(filterExpr),
			ExpressionAttributeNames:  b.exprNames(),
			ExpressionAttributeValues: b.exprValues(),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, classify("select", table, err)
			}
			raws = append(raws, page.Items...)
		}
	} else {
		p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
			TableName:                 aws.String(table),
			FilterExpression:          aws.String(filterExpr),
			ExpressionAttributeNames:  b.exprNames(),
			ExpressionAttributeValues: b.exprValues(),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, classify("select", table, err)
			}
			raws = append(raws, page.Items...)
		}
	}

	out := make([]record.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := decodeItem(raw)
		if err != nil {
			return nil, record.NewError(record.Permanent, "select", table, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// indexFor picks the first filter whose attribute has a GSI on table.
func (s *Store) indexFor(table string, filters []record.Filter) (int, string) {
	for i, f := range filters {
		if name := s.config.Indexes[table][f.Field]; name != "" {
			return i, name
		}
	}
	return -1, ""
}

// get reads one live record with a consistent read.
func (s *Store) get(ctx context.Context, op, table, id string) (record.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(op, table, err)
	}
	if out.Item == nil || IsDeleted(out.Item, s.now()) {
		return nil, record.ErrNotFound
	}
	return decodeItem(out.Item)
}

// resolveKey returns the live record owning a natural key, or an empty
// record when the key is unclaimed.
func (s *Store) resolveKey(ctx context.Context, table, pk string) (record.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.KeyTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: constraintSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("upsert", s.config.KeyTable, err)
	}
	if out.Item == nil || IsDeleted(out.Item, s.now()) {
		return record.Record{}, nil
	}
	ref, ok := out.Item["entity_id"].(*types.AttributeValueMemberS)
	if !ok || ref.Value == "" {
		return record.Record{}, nil
	}
	rec, err := s.get(ctx, "upsert", table, ref.Value)
	if errors.Is(err, record.ErrNotFound) {
		return record.Record{}, nil
	}
	return rec, err
}

// expireKey sets TTL on a natural-key record.
func (s *Store) expireKey(ctx context.Context, table, pk string) error {
	b := newExprBuilder()
	t := b.name(ttlAttr)
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.KeyTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: constraintSK},
		},
		UpdateExpression:          aws.String("SET " + t + " = " + b.value(epoch(s.now()))),
		ConditionExpression:       aws.String("attribute_not_exists(" + t + ")"),
		ExpressionAttributeNames:  b.exprNames(),
		ExpressionAttributeValues: b.exprValues(),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return classify("delete", table, err)
	}
	return nil
}

func (s *Store) keyItem(pk, table, id string, fields []string) map[string]types.AttributeValue {
	names := make([]types.AttributeValue, len(fields))
	for i, f := range fields {
		names[i] = &types.AttributeValueMemberS{Value: f}
	}
	return map[string]types.AttributeValue{
		"pk":          &types.AttributeValueMemberS{Value: pk},
		"sk":          &types.AttributeValueMemberS{Value: constraintSK},
		"table":       &types.AttributeValueMemberS{Value: table},
		"entity_id":   &types.AttributeValueMemberS{Value: id},
		"field_names": &types.AttributeValueMemberL{Value: names},
	}
}

// stamp copies rec without managed fields and sets id, timestamps and
// version. createdAt keeps the original creation time on replacement.
func (s *Store) stamp(rec record.Record, createdAt string) record.Record {
	row := make(record.Record, len(rec)+4)
	for k, v := range rec {
		if managed[k] {
			continue
		}
		row[k] = v
	}
	id := rec.ID()
	if id == "" {
		id = s.newID()
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	if createdAt == "" {
		createdAt = now
	}
	row["id"] = id
	row["created_at"] = createdAt
	row["updated_at"] = now
	row["version"] = 1
	return row
}

// buildSet renders a SET expression for partial plus the managed fields.
// Attributes are emitted in name order.
func buildSet(b *exprBuilder, partial record.Record, now time.Time) (string, error) {
	keys := make([]string, 0, len(partial))
	for k := range partial {
		if managed[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		av, err := attributevalue.Marshal(partial[k])
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", k, err)
		}
		clauses = append(clauses, b.name(k)+" = "+b.value(av))
	}
	ts := &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)}
	v := b.name("version")
	clauses = append(clauses,
		b.name("updated_at")+" = "+b.value(ts),
		fmt.Sprintf("%s = if_not_exists(%s, %s) + %s", v, v, b.value(num(0)), b.value(num(1))),
	)
	return "SET " + strings.Join(clauses, ", "), nil
}

// naturalValues extracts the string forms of fields from rec. complete is
// false when fields is empty or any of them is unset.
func naturalValues(rec record.Record, fields []string) ([]string, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = rec.String(f)
		if values[i] == "" {
			return nil, false
		}
	}
	return values, true
}

// decodeItem converts a DynamoDB item to a record, dropping store-internal
// attributes.
func decodeItem(item map[string]types.AttributeValue) (record.Record, error) {
	var m map[string]any
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	delete(m, ttlAttr)
	delete(m, naturalPKAttr)
	return record.Record(m), nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func num(n int) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: fmt.Sprint(n)}
}
