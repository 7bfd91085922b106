package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is a cent-precision amount. It is stored as decimal128 so that $inc
// on aggregate counters stays exact, and rendered in JSON as a plain number.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromString parses an amount such as "49.99".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// Neg returns the negated amount, for decrementing aggregates.
func (m Money) Neg() Money {
	return Money{Decimal: m.Decimal.Neg()}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(m.Decimal.String())
	if err != nil {
		return 0, nil, fmt.Errorf("money %s: %w", m.Decimal.String(), err)
	}
	return bson.MarshalValue(d128)
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(raw.Int64())
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
	return nil
}
