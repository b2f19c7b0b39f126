package faigz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanRead(t *testing.T) {
	t.Parallel()

	for _, tab := range []struct {
		name                string
		base, beg, end      int64
		lineBases, lineWide int64
		want                readPlan
	}{
		{
			name: "first full line",
			base: 6, beg: 0, end: 60, lineBases: 60, lineWide: 61,
			want: readPlan{firstByte: 6, n: 60, single: true},
		},
		{
			name: "span line boundary",
			base: 6, beg: 59, end: 61, lineBases: 60, lineWide: 61,
			want: readPlan{firstByte: 6 + 59, n: 2, firstRaw: 2, firstBases: 1, full: 0, tail: 1},
		},
		{
			name: "whole three line sequence",
			base: 6, beg: 0, end: 180, lineBases: 60, lineWide: 61,
			want: readPlan{firstByte: 6, n: 180, firstRaw: 61, firstBases: 60, full: 1, tail: 60},
		},
		{
			name: "mid line start",
			base: 0, beg: 10, end: 135, lineBases: 60, lineWide: 61,
			want: readPlan{firstByte: 10, n: 125, firstRaw: 51, firstBases: 50, full: 1, tail: 15},
		},
		{
			name: "single byte",
			base: 100, beg: 62, end: 63, lineBases: 60, lineWide: 61,
			want: readPlan{firstByte: 100 + 61 + 2, n: 1, single: true},
		},
		{
			name: "crlf stride",
			base: 0, beg: 0, end: 120, lineBases: 60, lineWide: 62,
			want: readPlan{firstByte: 0, n: 120, firstRaw: 62, firstBases: 60, full: 0, tail: 60},
		},
	} {
		tab := tab
		t.Run(tab.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planRead(tab.base, tab.beg, tab.end, tab.lineBases, tab.lineWide)
			require.NoError(t, err)
			assert.Equal(t, tab.want, plan)
		})
	}
}

func TestPlanReadPayloadConservation(t *testing.T) {
	t.Parallel()

	// Whatever the split, the plan must account for exactly end-beg payload
	// bytes and keep the leading read inside one stride.
	for _, geom := range []struct{ lineBases, lineWidth int64 }{
		{1, 2}, {3, 4}, {60, 61}, {60, 62}, {7, 9},
	} {
		for beg := int64(0); beg < 3*geom.lineBases; beg += 5 {
			for n := int64(1); n < 4*geom.lineBases; n += 3 {
				plan, err := planRead(0, beg, beg+n, geom.lineBases, geom.lineWidth)
				require.NoError(t, err)

				assert.Equal(t, n, plan.n)
				if plan.single {
					assert.LessOrEqual(t, n, geom.lineBases-beg%geom.lineBases)
					continue
				}

				assert.Equal(t, n, plan.firstBases+plan.full*geom.lineBases+plan.tail)
				assert.Equal(t, plan.firstRaw, geom.lineWidth-beg%geom.lineBases)
				assert.Greater(t, plan.tail, int64(0))
				assert.LessOrEqual(t, plan.tail, geom.lineBases)
			}
		}
	}
}

func TestPlanReadBadGeometry(t *testing.T) {
	t.Parallel()

	for _, tab := range []struct {
		name                         string
		base, beg, end               int64
		lineBases, lineWidth         int64
	}{
		{name: "zero payload", base: 0, beg: 0, end: 10, lineBases: 0, lineWidth: 1},
		{name: "stride below payload", base: 0, beg: 0, end: 10, lineBases: 60, lineWidth: 59},
		{name: "negative begin", base: 0, beg: -1, end: 10, lineBases: 60, lineWidth: 61},
		{name: "end before begin", base: 0, beg: 10, end: 9, lineBases: 60, lineWidth: 61},
	} {
		tab := tab
		t.Run(tab.name, func(t *testing.T) {
			t.Parallel()

			_, err := planRead(tab.base, tab.beg, tab.end, tab.lineBases, tab.lineWidth)
			assert.ErrorIs(t, err, ErrBadGeometry)
		})
	}
}
