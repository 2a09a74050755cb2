package dynamo

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/storefront/record"
)

// fakeAPI records requests and serves canned responses.
type fakeAPI struct {
	puts     []*dynamodb.PutItemInput
	updates  []*dynamodb.UpdateItemInput
	gets     []*dynamodb.GetItemInput
	queries  []*dynamodb.QueryInput
	scans    []*dynamodb.ScanInput
	transact []*dynamodb.TransactWriteItemsInput

	items   map[string]map[string]types.AttributeValue // key: table + "/" + id or pk
	results []map[string]types.AttributeValue
	err     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(table string, key map[string]types.AttributeValue) string {
	if v, ok := key["id"].(*types.AttributeValueMemberS); ok {
		return table + "/" + v.Value
	}
	if v, ok := key["pk"].(*types.AttributeValueMemberS); ok {
		return table + "/" + v.Value
	}
	return table + "/?"
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.gets = append(f.gets, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(*in.TableName, in.Key)]}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.err != nil {
		return nil, f.err
	}
	f.items[itemKey(*in.TableName, in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.UpdateItemOutput{Attributes: f.items[itemKey(*in.TableName, in.Key)]}, nil
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.QueryOutput{Items: f.results}, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.ScanOutput{Items: f.results}, nil
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transact = append(f.transact, in)
	if f.err != nil {
		return nil, f.err
	}
	for _, ti := range in.TransactItems {
		if ti.Put != nil {
			f.items[itemKey(*ti.Put.TableName, ti.Put.Item)] = ti.Put.Item
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(api API) *Store {
	s := New(api, DefaultConfig())
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "gen-1" }
	return s
}

func str(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.KeyTable != "storefront_natural_keys" {
		t.Errorf("expected default key table, got %s", cfg.KeyTable)
	}
	if cfg.Indexes["services"]["shop_id"] != "shop_id-index" {
		t.Errorf("expected services shop_id index, got %v", cfg.Indexes["services"])
	}
	if _, ok := cfg.Indexes["shops"]; ok {
		t.Error("expected no index on shops")
	}
	nk := cfg.NaturalKeys["staff"]
	if len(nk) != 2 || nk[0] != "shop_id" || nk[1] != "client_key" {
		t.Errorf("expected staff natural key [shop_id client_key], got %v", nk)
	}
}

func TestInsert_PlainPut(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(api)

	got, err := s.Insert(context.Background(), "shops", record.Record{"name": "Salon", "ttl": 5})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(api.puts) != 1 || len(api.transact) != 0 {
		t.Fatalf("expected 1 put and no transaction, got %d/%d", len(api.puts), len(api.transact))
	}
	if *api.puts[0].ConditionExpression != "attribute_not_exists(id)" {
		t.Errorf("unexpected condition %s", *api.puts[0].ConditionExpression)
	}
	if got.ID() != "gen-1" {
		t.Errorf("expected generated id, got %s", got.ID())
	}
	if got.String("created_at") != fixedNow.Format(time.RFC3339Nano) {
		t.Errorf("expected created_at stamp, got %s", got.String("created_at"))
	}
	if _, ok := got["ttl"]; ok {
		t.Error("expected caller ttl to be dropped")
	}
	if got.Int("version") != 1 {
		t.Errorf("expected version 1, got %v", got["version"])
	}
}

func TestInsert_NaturalKeyTransaction(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(api)

	got, err := s.Insert(context.Background(), "services", record.Record{
		"shop_id": "s1", "client_key": "ck1", "name": "Cut",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(api.transact) != 1 {
		t.Fatalf("expected a transaction, got %d", len(api.transact))
	}
	items := api.transact[0].TransactItems
	if len(items) != 2 {
		t.Fatalf("expected 2 transact items, got %d", len(items))
	}
	if *items[0].Put.TableName != "storefront_natural_keys" {
		t.Errorf("expected key put first, got %s", *items[0].Put.TableName)
	}
	if id := items[0].Put.Item["entity_id"].(*types.AttributeValueMemberS).Value; id != "gen-1" {
		t.Errorf("expected key to reference gen-1, got %s", id)
	}
	if _, ok := got[naturalPKAttr]; ok {
		t.Error("expected natural pk to be hidden from callers")
	}
	if got.String("name") != "Cut" {
		t.Errorf("expected name Cut, got %s", got.String("name"))
	}
}

func TestInsert_ReleasedKeyCanBeTaken(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(api)

	_, err := s.Insert(context.Background(), "services", record.Record{
		"shop_id": "s1", "client_key": "ck1", "name": "Cut",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	put := api.transact[0].TransactItems[0].Put
	if got := *put.ConditionExpression; got != "attribute_not_exists(pk) OR #a0 <= :v0" {
		t.Fatalf("unexpected key condition %s", got)
	}
	if put.ExpressionAttributeNames["#a0"] != "ttl" {
		t.Errorf("expected #a0 to name ttl, got %v", put.ExpressionAttributeNames)
	}
	now, ok := put.ExpressionAttributeValues[":v0"].(*types.AttributeValueMemberN)
	if !ok || now.Value != strconv.FormatInt(fixedNow.Unix(), 10) {
		t.Errorf("expected :v0 to be the current epoch, got %v", put.ExpressionAttributeValues[":v0"])
	}
	if item := api.transact[0].TransactItems[1].Put; item.ExpressionAttributeNames != nil {
		t.Errorf("expected no names on the record put, got %v", item.ExpressionAttributeNames)
	}
}

func TestInsert_TransactionErrors(t *testing.T) {
	tests := []struct {
		name     string
		reasons  []types.CancellationReason
		kind     record.Kind
		sentinel error
	}{
		{
			name:     "natural key taken",
			reasons:  []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("None")}},
			kind:     record.Permanent,
			sentinel: record.ErrDuplicateValue,
		},
		{
			name:     "id taken",
			reasons:  []types.CancellationReason{{Code: aws.String("None")}, {Code: aws.String("ConditionalCheckFailed")}},
			kind:     record.Permanent,
			sentinel: record.ErrAlreadyExists,
		},
		{
			name:    "conflict",
			reasons: []types.CancellationReason{{Code: aws.String("TransactionConflict")}},
			kind:    record.Transient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.err = &types.TransactionCanceledException{CancellationReasons: tt.reasons}
			s := newTestStore(api)

			_, err := s.Insert(context.Background(), "services", record.Record{"shop_id": "s1", "client_key": "k"})
			if record.KindOf(err) != tt.kind {
				t.Errorf("expected kind %s, got %s (%v)", tt.kind, record.KindOf(err), err)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v, got %v", tt.sentinel, err)
			}
		})
	}
}

func TestUpdate_BuildsExpression(t *testing.T) {
	api := newFakeAPI()
	api.items["shops/s1"] = map[string]types.AttributeValue{"id": str("s1"), "name": str("New")}
	s := newTestStore(api)

	got, err := s.Update(context.Background(), "shops", "s1", record.Record{"phone": "1", "name": "New", "id": "x"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	in := api.updates[0]
	expr := *in.UpdateExpression
	if !strings.HasPrefix(expr, "SET ") {
		t.Errorf("expected SET expression, got %s", expr)
	}
	names := map[string]bool{}
	for _, v := range in.ExpressionAttributeNames {
		names[v] = true
	}
	for _, want := range []string{"name", "phone", "updated_at", "version", "ttl"} {
		if !names[want] {
			t.Errorf("expected attribute name %s in %v", want, in.ExpressionAttributeNames)
		}
	}
	if names["id"] {
		t.Error("expected id to be excluded from SET")
	}
	if in.ReturnValues != types.ReturnValueAllNew {
		t.Errorf("expected ALL_NEW, got %s", in.ReturnValues)
	}
	if got.String("name") != "New" {
		t.Errorf("expected returned record, got %v", got)
	}
}

func TestUpdate_ConditionFailureIsNotFound(t *testing.T) {
	api := newFakeAPI()
	api.err = &types.ConditionalCheckFailedException{Message: aws.String("failed")}
	s := newTestStore(api)

	_, err := s.Update(context.Background(), "shops", "missing", record.Record{"name": "x"})
	if !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if record.KindOf(err) != record.Permanent {
		t.Errorf("expected permanent, got %s", record.KindOf(err))
	}
}

func TestDelete_SetsTTLAndReleasesKey(t *testing.T) {
	api := newFakeAPI()
	api.items["services/a"] = map[string]types.AttributeValue{"id": str("a"), naturalPKAttr: str("pk1")}
	s := newTestStore(api)

	if err := s.Delete(context.Background(), "services", "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(api.updates) != 2 {
		t.Fatalf("expected entity and key updates, got %d", len(api.updates))
	}
	if *api.updates[1].TableName != "storefront_natural_keys" {
		t.Errorf("expected key table update, got %s", *api.updates[1].TableName)
	}
}

func TestDelete_MissingIsNoop(t *testing.T) {
	api := newFakeAPI()
	api.err = &types.ConditionalCheckFailedException{Message: aws.String("failed")}
	s := newTestStore(api)

	if err := s.Delete(context.Background(), "services", "gone"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestUpsert_ReusesExistingRecord(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(api)
	ctx := context.Background()

	first, err := s.Insert(ctx, "services", record.Record{"shop_id": "s1", "client_key": "k1", "name": "Cut"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	s.newID = func() string { return "gen-2" }

	got, err := s.Upsert(ctx, "services", record.Record{"shop_id": "s1", "client_key": "k1", "name": "Cut v2"}, "shop_id", "client_key")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if got.ID() != first.ID() {
		t.Errorf("expected upsert to keep id %s, got %s", first.ID(), got.ID())
	}
	if got.Int("version") != 2 {
		t.Errorf("expected version 2, got %v", got["version"])
	}
	if got.String("name") != "Cut v2" {
		t.Errorf("expected replaced name, got %s", got.String("name"))
	}
}

func TestUpsert_NewKeyInserts(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(api)

	got, err := s.Upsert(context.Background(), "services", record.Record{"shop_id": "s1", "client_key": "k9"}, "shop_id", "client_key")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if got.ID() != "gen-1" {
		t.Errorf("expected generated id, got %s", got.ID())
	}
}

func TestUpsert_MissingConflictField(t *testing.T) {
	s := newTestStore(newFakeAPI())

	_, err := s.Upsert(context.Background(), "services", record.Record{"shop_id": "s1"}, "shop_id", "client_key")
	if record.KindOf(err) != record.Permanent {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestSelectWhere_QueryWhenIndexed(t *testing.T) {
	api := newFakeAPI()
	api.results = []map[string]types.AttributeValue{
		{"id": str("a"), "shop_id": str("s1"), "ttl": &types.AttributeValueMemberN{Value: "99"}},
	}
	s := newTestStore(api)

	got, err := s.SelectWhere(context.Background(), "services", record.Eq("shop_id", "s1"), record.Eq("is_active", true))
	if err != nil {
		t.Fatalf("SelectWhere failed: %v", err)
	}
	if len(api.queries) != 1 || len(api.scans) != 0 {
		t.Fatalf("expected a query, got %d queries %d scans", len(api.queries), len(api.scans))
	}
	q := api.queries[0]
	if *q.IndexName != "shop_id-index" {
		t.Errorf("expected shop_id-index, got %s", *q.IndexName)
	}
	if strings.Contains(*q.FilterExpression, *q.KeyConditionExpression) {
		t.Errorf("expected key condition outside filter, got %s", *q.FilterExpression)
	}
	if !strings.Contains(*q.FilterExpression, "attribute_not_exists") {
		t.Errorf("expected TTL filter, got %s", *q.FilterExpression)
	}
	if len(got) != 1 || got[0].ID() != "a" {
		t.Fatalf("expected record a, got %v", got)
	}
	if _, ok := got[0]["ttl"]; ok {
		t.Error("expected ttl to be stripped")
	}
}

func TestSelectWhere_ScanWhenUnindexed(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(api)

	if _, err := s.SelectWhere(context.Background(), "shops", record.Eq("owner", "u1")); err != nil {
		t.Fatalf("SelectWhere failed: %v", err)
	}
	if len(api.scans) != 1 {
		t.Errorf("expected a scan, got %d", len(api.scans))
	}
}

func TestSelectWhere_ByID(t *testing.T) {
	api := newFakeAPI()
	api.items["shops/s1"] = map[string]types.AttributeValue{"id": str("s1")}
	api.items["shops/s2"] = map[string]types.AttributeValue{
		"id": str("s2"), "ttl": &types.AttributeValueMemberN{Value: "1"},
	}
	s := newTestStore(api)
	ctx := context.Background()

	got, err := s.SelectWhere(ctx, "shops", record.Eq("id", "s1"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected s1, got %v (%v)", got, err)
	}
	if !*api.gets[0].ConsistentRead {
		t.Error("expected consistent read")
	}

	got, err = s.SelectWhere(ctx, "shops", record.Eq("id", "s2"))
	if err != nil || len(got) != 0 {
		t.Errorf("expected deleted record to be hidden, got %v (%v)", got, err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want record.Kind
	}{
		{"resource not found", &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}, record.SchemaMissing},
		{"condition", &types.ConditionalCheckFailedException{}, record.Permanent},
		{"throughput", &types.ProvisionedThroughputExceededException{}, record.Transient},
		{"throttling", &smithy.GenericAPIError{Code: "ThrottlingException", Fault: smithy.FaultClient}, record.Transient},
		{"server fault", &smithy.GenericAPIError{Code: "Boom", Fault: smithy.FaultServer}, record.Transient},
		{"validation", &smithy.GenericAPIError{Code: "ValidationException", Fault: smithy.FaultClient}, record.Permanent},
		{"deadline", context.DeadlineExceeded, record.Transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := record.KindOf(classify("select", "t", tt.err)); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIsDeleted(t *testing.T) {
	tests := []struct {
		name string
		item map[string]types.AttributeValue
		want bool
	}{
		{"no ttl", map[string]types.AttributeValue{}, false},
		{"past ttl", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "100"}}, true},
		{"future ttl", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "99999999999"}}, false},
		{"ttl equal to now", map[string]types.AttributeValue{"ttl": epoch(fixedNow)}, true},
		{"wrong type", map[string]types.AttributeValue{"ttl": str("100")}, false},
		{"invalid number", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeleted(tt.item, fixedNow); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExprBuilder_ReusesNames(t *testing.T) {
	b := newExprBuilder()
	first := b.name("ttl")
	if b.name("ttl") != first {
		t.Error("expected the same placeholder for a repeated name")
	}
	if b.value(str("a")) == b.value(str("a")) {
		t.Error("expected distinct value placeholders")
	}
	if len(newExprBuilder().exprNames()) != 0 || newExprBuilder().exprValues() != nil {
		t.Error("expected empty builder to return nil maps")
	}
}
