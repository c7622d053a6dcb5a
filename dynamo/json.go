package dynamo

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UnmarshalItem converts a raw attribute map into plain Go values, numbers
// becoming float64. This is the bridge from GetRaw/ScanAll/QueryByKey
// results to anything that expects ordinary JSON-shaped data.
func UnmarshalItem(item map[string]types.AttributeValue) (map[string]any, error) {
	var out map[string]any
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return out, nil
}

// ItemToJSON serializes a raw attribute map as a JSON string. indent is
// the per-level indent string; empty means compact output. Marshaling the
// attribute map directly would render the SDK's union structs, not the
// item.
func ItemToJSON(item map[string]types.AttributeValue, indent string) (string, error) {
	m, err := UnmarshalItem(item)
	if err != nil {
		return "", err
	}

	var b []byte
	if indent == "" {
		b, err = json.Marshal(m)
	} else {
		b, err = json.MarshalIndent(m, "", indent)
	}
	if err != nil {
		return "", fmt.Errorf("marshal item: %w", err)
	}
	return string(b), nil
}
