package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Month
		wantErr bool
	}{
		{"year-month", "2014-01", NewMonth(2014, time.January), false},
		{"slash year-month", "2019/11", NewMonth(2019, time.November), false},
		{"full date", "2020-02-15", NewMonth(2020, time.February), false},
		{"datetime as stored by sqlite", "2023-12-01 00:00:00", NewMonth(2023, time.December), false},
		{"rfc3339", "2021-06-01T00:00:00Z", NewMonth(2021, time.June), false},
		{"surrounding whitespace", "  2015-03 ", NewMonth(2015, time.March), false},
		{"empty", "", Month{}, true},
		{"garbage", "March 2015", Month{}, true},
		{"invalid month", "2015-13", Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthOrdering(t *testing.T) {
	jan := NewMonth(2014, time.January)
	dec := NewMonth(2013, time.December)

	assert.True(t, dec.Before(jan))
	assert.True(t, jan.After(dec))
	assert.Equal(t, -1, dec.Compare(jan))
	assert.Equal(t, 1, jan.Compare(dec))
	assert.Equal(t, 0, jan.Compare(NewMonth(2014, time.January)))
	assert.Equal(t, jan, dec.AddMonths(1))
	assert.Equal(t, NewMonth(2015, time.March), jan.AddMonths(14))
}

func TestMonthString(t *testing.T) {
	assert.Equal(t, "2014-01", NewMonth(2014, time.January).String())
	assert.Equal(t, "0999-12", NewMonth(999, time.December).String())
	assert.Equal(t, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), NewMonth(2014, time.January).Time())
}

func TestMonthJSON(t *testing.T) {
	type payload struct {
		M Month `json:"m"`
	}
	b, err := json.Marshal(payload{M: NewMonth(2018, time.July)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":"2018-07"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"m":"2019-08"}`), &p))
	assert.Equal(t, NewMonth(2019, time.August), p.M)
	assert.Error(t, json.Unmarshal([]byte(`{"m":"nope"}`), &p))
}

func TestMonthRange(t *testing.T) {
	months := MonthRange(MustParseMonth("2014-11"), MustParseMonth("2015-02"))
	require.Len(t, months, 4)
	assert.Equal(t, "2014-11", months[0].String())
	assert.Equal(t, "2015-02", months[3].String())

	assert.Nil(t, MonthRange(MustParseMonth("2015-02"), MustParseMonth("2014-11")))
	assert.Len(t, MonthRange(MustParseMonth("2014-01"), MustParseMonth("2023-12")), 120)
}
