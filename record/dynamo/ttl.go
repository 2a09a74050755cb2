package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const ttlAttr = "ttl"

// IsDeleted reports whether an item carries a TTL at or before now.
func IsDeleted(item map[string]types.AttributeValue, now time.Time) bool {
	n, ok := item[ttlAttr].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now.Unix()
}

func epoch(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

// exprBuilder allocates placeholder names and values for one expression set.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	n      int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

// name returns the placeholder for an attribute name.
func (b *exprBuilder) name(attr string) string {
	for k, v := range b.names {
		if v == attr {
			return k
		}
	}
	k := "#a" + strconv.Itoa(len(b.names))
	b.names[k] = attr
	return k
}

// value returns a fresh placeholder bound to av.
func (b *exprBuilder) value(av types.AttributeValue) string {
	k := ":v" + strconv.Itoa(b.n)
	b.n++
	b.values[k] = av
	return k
}

// alive returns a condition that excludes soft-deleted items.
func (b *exprBuilder) alive(now time.Time) string {
	t := b.name(ttlAttr)
	return "(attribute_not_exists(" + t + ") OR " + t + " > " + b.value(epoch(now)) + ")"
}

// expired returns a condition that matches soft-deleted items.
func (b *exprBuilder) expired(now time.Time) string {
	return b.name(ttlAttr) + " <= " + b.value(epoch(now))
}

func (b *exprBuilder) exprNames() map[string]string {
	if len(b.names) == 0 {
		return nil
	}
	return b.names
}

func (b *exprBuilder) exprValues() map[string]types.AttributeValue {
	if len(b.values) == 0 {
		return nil
	}
	return b.values
}
