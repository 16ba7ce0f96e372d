package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

func TestTimeResolverResolve(t *testing.T) {
	tr := NewTimeResolver(nil)

	tests := []struct {
		name           string
		req            models.LocalTimeRequest
		wantUTC        time.Time
		wantTransition bool
		wantEdge       bool
		wantRule       string
	}{
		{
			name:    "Seoul summer 1992 is plain KST",
			req:     models.LocalTimeRequest{Year: 1992, Month: 7, Day: 15, Hour: 23, Minute: 40, Timezone: "Asia/Seoul"},
			wantUTC: time.Date(1992, 7, 15, 14, 40, 0, 0, time.UTC),
			wantTransition: false,
			wantRule:       "unambiguous",
		},
		{
			name:    "New York spring-forward gap folds forward",
			req:     models.LocalTimeRequest{Year: 2020, Month: 3, Day: 8, Hour: 2, Minute: 30, Timezone: "America/New_York"},
			wantUTC: time.Date(2020, 3, 8, 7, 30, 0, 0, time.UTC),
			wantTransition: true,
			wantEdge:       true,
			wantRule:       "dst_gap_fold_forward",
		},
		{
			name:    "New York fall-back fold picks the earlier occurrence",
			req:     models.LocalTimeRequest{Year: 2020, Month: 11, Day: 1, Hour: 1, Minute: 30, Timezone: "America/New_York"},
			wantUTC: time.Date(2020, 11, 1, 5, 30, 0, 0, time.UTC),
			wantTransition: true,
			wantRule:       "dst_fold_earlier",
		},
		{
			name:    "UTC passthrough",
			req:     models.LocalTimeRequest{Year: 2000, Month: 1, Day: 1, Hour: 12, Timezone: "UTC"},
			wantUTC: time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			wantRule: "unambiguous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			utc, res, err := tr.Resolve(tt.req)
			require.NoError(t, err)
			assert.True(t, utc.Equal(tt.wantUTC), "got %s, want %s", utc, tt.wantUTC)
			assert.Equal(t, tt.wantTransition, res.TZTransition)
			assert.Equal(t, tt.wantEdge, res.Edge)
			assert.Equal(t, tt.wantRule, res.Rule)
		})
	}
}

func TestTimeResolverUnknownTimezone(t *testing.T) {
	tr := NewTimeResolver(nil)
	_, _, err := tr.Resolve(models.LocalTimeRequest{Year: 2000, Month: 1, Day: 1, Timezone: "Mars/Olympus_Mons"})
	assert.Error(t, err)
}

func TestTimeResolverRoundtripBijection(t *testing.T) {
	// Outside fold/gap windows the resolved UTC instant must convert back to
	// exactly the requested wall clock.
	tr := NewTimeResolver(nil)

	zones := []string{"Asia/Seoul", "America/New_York", "Europe/Berlin", "Australia/Sydney"}
	for _, zone := range zones {
		loc, err := time.LoadLocation(zone)
		require.NoError(t, err)

		for day := 1; day <= 28; day += 3 {
			req := models.LocalTimeRequest{Year: 2019, Month: 6, Day: day, Hour: 12, Minute: 17, Second: 5, Timezone: zone}
			utc, res, err := tr.Resolve(req)
			require.NoError(t, err)
			if res.TZTransition {
				continue
			}

			back := utc.In(loc)
			assert.Equal(t, req.Hour, back.Hour(), "%s day %d", zone, day)
			assert.Equal(t, req.Minute, back.Minute(), "%s day %d", zone, day)
			assert.Equal(t, req.Day, back.Day(), "%s day %d", zone, day)
		}
	}
}

func TestTimeResolverDeterministic(t *testing.T) {
	tr := NewTimeResolver(nil)
	req := models.LocalTimeRequest{Year: 2020, Month: 11, Day: 1, Hour: 1, Minute: 30, Timezone: "America/New_York"}

	utc1, res1, err := tr.Resolve(req)
	require.NoError(t, err)
	utc2, res2, err := tr.Resolve(req)
	require.NoError(t, err)

	assert.True(t, utc1.Equal(utc2))
	assert.Equal(t, res1.Rule, res2.Rule)
}
