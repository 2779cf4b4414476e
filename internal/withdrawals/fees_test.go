package withdrawals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeScheduleFee(t *testing.T) {
	cases := []struct {
		name   string
		flat   int64
		rate   string
		amount int64
		want   int64
	}{
		{name: "no fee", rate: "", amount: 500, want: 0},
		{name: "flat only", flat: 25, rate: "0", amount: 500, want: 25},
		{name: "rate rounds half up", rate: "0.015", amount: 1500, want: 23},
		{name: "flat plus rate", flat: 10, rate: "0.01", amount: 1000, want: 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fees, err := NewFeeSchedule(tc.flat, tc.rate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fees.Fee(tc.amount))
		})
	}
}

func TestNewFeeScheduleRejectsBadInput(t *testing.T) {
	_, err := NewFeeSchedule(-1, "0")
	require.Error(t, err)
	_, err = NewFeeSchedule(0, "1")
	require.Error(t, err)
	_, err = NewFeeSchedule(0, "-0.1")
	require.Error(t, err)
	_, err = NewFeeSchedule(0, "abc")
	require.Error(t, err)
}
