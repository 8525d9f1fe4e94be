package rest

import (
	"strconv"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func toStringPtr(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	case float64:
		s := strconv.FormatInt(int64(t), 10)
		return &s, nil
	default:
		return nil, &ValidationError{Message: "invalid type for string field"}
	}
}

// toAmount parses a ledger amount in minor units. JSON numbers must be whole;
// fractional paise are rejected rather than rounded.
func toAmount(v interface{}, field string) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		i := int64(t)
		if float64(i) != t {
			return 0, &ValidationError{Field: field, Message: field + " must be an integer amount in minor units"}
		}
		return i, nil
	case string:
		if t == "" {
			return 0, nil
		}
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, &ValidationError{Field: field, Message: field + " must be an integer amount in minor units"}
		}
		return i, nil
	default:
		return 0, &ValidationError{Field: field, Message: field + " must be an integer amount in minor units"}
	}
}

func toDatePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, &ValidationError{Message: "invalid type for date field"}
	}
}
