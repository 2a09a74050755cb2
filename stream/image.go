package stream

import (
	"strconv"

	"github.com/aws/aws-lambda-go/events"
)

// stringAttr extracts a string attribute from a stream image.
func stringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// numberAttr extracts a number attribute from a stream image.
func numberAttr(image map[string]events.DynamoDBAttributeValue, key string) float64 {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeNumber {
		n, _ := strconv.ParseFloat(v.Number(), 64)
		return n
	}
	return 0
}

// mapListAttr extracts a list of maps from a stream image. Non-map items are
// skipped.
func mapListAttr(image map[string]events.DynamoDBAttributeValue, key string) []map[string]events.DynamoDBAttributeValue {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeList {
		return nil
	}
	var out []map[string]events.DynamoDBAttributeValue
	for _, item := range v.List() {
		if item.DataType() == events.DataTypeMap {
			out = append(out, item.Map())
		}
	}
	return out
}
