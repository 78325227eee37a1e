package kinds

import (
	"math"
	"strconv"
	"strings"

	"fieldline/internal/fieldtype"
)

const NumberKey = "number"

type numberCodec struct{}

func (numberCodec) StorageKind() fieldtype.StorageKind { return fieldtype.Number }

func (numberCodec) ToStorage(v float64) (fieldtype.StorageValue, bool) {
	return fieldtype.NumberValue(v), true
}

func (numberCodec) FromStorage(sv fieldtype.StorageValue) (float64, error) {
	return sv.Float()
}

func (numberCodec) ToText(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (numberCodec) FromText(text string) (float64, error) {
	text = strings.TrimSpace(text)
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fieldtype.Invalidf("%q is not a valid number", text)
	}
	return f, nil
}

func NewNumber(opts fieldtype.Options) *fieldtype.Single[float64] {
	return fieldtype.NewSingle[float64](NumberKey, "Number Field", numberCodec{}, opts)
}
