package dynamods

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// toAttributeValue converts a property value to a DynamoDB attribute value.
func toAttributeValue(v interface{}) (types.AttributeValue, error) {
	switch t := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: t}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: t}, nil
	case int:
		return number(strconv.FormatInt(int64(t), 10)), nil
	case int8:
		return number(strconv.FormatInt(int64(t), 10)), nil
	case int16:
		return number(strconv.FormatInt(int64(t), 10)), nil
	case int32:
		return number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return number(strconv.FormatInt(t, 10)), nil
	case uint8:
		return number(strconv.FormatUint(uint64(t), 10)), nil
	case uint16:
		return number(strconv.FormatUint(uint64(t), 10)), nil
	case uint32:
		return number(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return number(strconv.FormatUint(t, 10)), nil
	case float32:
		return number(strconv.FormatFloat(float64(t), 'g', -1, 32)), nil
	case float64:
		return number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case []byte:
		return &types.AttributeValueMemberB{Value: t}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: t.Format(time.RFC3339Nano)}, nil
	case []interface{}:
		l := make([]types.AttributeValue, 0, len(t))
		for i, e := range t {
			av, err := toAttributeValue(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			l = append(l, av)
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	case map[string]interface{}:
		m := make(map[string]types.AttributeValue, len(t))
		for k, e := range t {
			av, err := toAttributeValue(e)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", k, err)
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func number(s string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: s}
}

// fromAttributeValue converts a DynamoDB attribute value back to a property value.
// Numbers become int64 when they are integral, float64 otherwise.
func fromAttributeValue(av types.AttributeValue) interface{} {
	switch t := av.(type) {
	case *types.AttributeValueMemberS:
		return t.Value
	case *types.AttributeValueMemberN:
		return parseNumber(t.Value)
	case *types.AttributeValueMemberBOOL:
		return t.Value
	case *types.AttributeValueMemberB:
		return t.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberL:
		l := make([]interface{}, 0, len(t.Value))
		for _, e := range t.Value {
			l = append(l, fromAttributeValue(e))
		}
		return l
	case *types.AttributeValueMemberM:
		m := make(map[string]interface{}, len(t.Value))
		for k, e := range t.Value {
			m[k] = fromAttributeValue(e)
		}
		return m
	case *types.AttributeValueMemberSS:
		l := make([]interface{}, 0, len(t.Value))
		for _, s := range t.Value {
			l = append(l, s)
		}
		return l
	case *types.AttributeValueMemberNS:
		l := make([]interface{}, 0, len(t.Value))
		for _, s := range t.Value {
			l = append(l, parseNumber(s))
		}
		return l
	default:
		return nil
	}
}

func parseNumber(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
