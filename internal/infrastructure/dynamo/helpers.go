package dynamo

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a SET expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Keys are emitted in sorted order so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (*updateExpr, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := &updateExpr{
		Expr:   "SET ",
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	for i, k := range keys {
		nameKey, valueKey, err := ue.bind(k, updates[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			ue.Expr += ", "
		}
		ue.Expr += fmt.Sprintf("%s = %s", nameKey, valueKey)
	}
	return ue, nil
}

// setIfNotExists appends a clause that writes field only when the item does not
// carry it yet, e.g. a creation timestamp on an upsert.
func (ue *updateExpr) setIfNotExists(field string, value interface{}) error {
	nameKey, valueKey, err := ue.bind(field, value)
	if err != nil {
		return err
	}
	ue.Expr += fmt.Sprintf(", %s = if_not_exists(%s, %s)", nameKey, nameKey, valueKey)
	return nil
}

func (ue *updateExpr) bind(field string, value interface{}) (string, string, error) {
	i := len(ue.Names)
	nameKey := fmt.Sprintf("#f%d", i)
	valueKey := fmt.Sprintf(":v%d", i)
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return "", "", fmt.Errorf("marshal field %s: %w", field, err)
	}
	ue.Names[nameKey] = field
	ue.Values[valueKey] = av
	return nameKey, valueKey, nil
}
