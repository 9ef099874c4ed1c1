package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"bvp/pkg/util"
)

// Float is a float64 that encodes NaN and ±Inf as JSON null.
type Float float64

// NaN is the "not-a-number" sentinel used for metrics that cannot be computed.
func NaN() Float { return Float(math.NaN()) }

func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = NaN()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Duration encodes as an ISO 8601 duration ("PT6H", "-PT15M").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(util.FormatISODuration(time.Duration(d)))
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := util.ParseISODuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
