package auth_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/stretchr/testify/assert"
)

func renderStamp(ago time.Duration, now time.Time) string {
	return strconv.FormatInt(now.Add(-ago).Unix(), 10)
}

func TestHoneypotInspect(t *testing.T) {
	hp := auth.NewHoneypot(2 * time.Second)
	now := time.Now()

	tests := []struct {
		name       string
		value      string
		renderedAt string
		want       auth.HoneypotVerdict
	}{
		{
			name:       "empty trap is clean",
			value:      "",
			renderedAt: renderStamp(10*time.Second, now),
			want:       auth.HoneypotClean,
		},
		{
			name:       "fast fill with arbitrary value is a bot",
			value:      "http://spam.example",
			renderedAt: renderStamp(400*time.Millisecond, now),
			want:       auth.HoneypotBot,
		},
		{
			name:       "fast checkbox-style fill is a bot",
			value:      "on",
			renderedAt: renderStamp(400*time.Millisecond, now),
			want:       auth.HoneypotBot,
		},
		{
			name:       "script artifact is only a soft signal even when fast",
			value:      "undefined",
			renderedAt: renderStamp(400*time.Millisecond, now),
			want:       auth.HoneypotSuspect,
		},
		{
			name:       "slow fill suggests a human",
			value:      "some value",
			renderedAt: renderStamp(30*time.Second, now),
			want:       auth.HoneypotSuspect,
		},
		{
			name:       "missing timestamp counts as instant submit",
			value:      "some value",
			renderedAt: "",
			want:       auth.HoneypotBot,
		},
		{
			name:       "garbage timestamp counts as instant submit",
			value:      "some value",
			renderedAt: "not-a-number",
			want:       auth.HoneypotBot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hp.Inspect(tt.value, tt.renderedAt, now))
		})
	}
}
