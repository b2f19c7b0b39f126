package faigz

import (
	"fmt"
	"math"
)

// readPlan is the physical schedule for copying one logical payload range out
// of a line-wrapped file. Produced by planRead, executed by Reader.retrieve.
type readPlan struct {
	// firstByte is the physical offset of the first payload byte.
	firstByte int64

	// n is the total payload bytes to produce.
	n int64

	// single means the whole range sits inside one line: one read of
	// exactly n bytes, no terminator stripping.
	single bool

	// firstRaw is the raw read for the leading partial line, terminator
	// included; firstBases of it are payload.
	firstRaw   int64
	firstBases int64

	// full is the count of whole lines after the leading one, each a raw
	// read of lineWidth retaining lineBases.
	full int64

	// tail is the payload bytes in the final short read, terminator
	// excluded.
	tail int64
}

// planRead maps the logical half-open range [beg, end) of a sequence whose
// payload starts at base and is wrapped at lineBases payload bytes per
// lineWidth stride bytes.
//
// The caller clamps beg and end into the sequence first; planRead only
// refuses impossible geometry: a zero line payload (division by zero), a
// stride shorter than the payload, or a range whose buffer would overflow.
func planRead(base, beg, end, lineBases, lineWidth int64) (readPlan, error) {
	if lineBases <= 0 || lineWidth < lineBases {
		return readPlan{}, fmt.Errorf("%w: payload %d, stride %d", ErrBadGeometry, lineBases, lineWidth)
	}
	if beg < 0 || end < beg {
		return readPlan{}, fmt.Errorf("%w: range [%d, %d)", ErrBadGeometry, beg, end)
	}
	if end-beg > math.MaxInt64-lineWidth {
		return readPlan{}, fmt.Errorf("%w: range [%d, %d) overflows", ErrBadGeometry, beg, end)
	}

	plan := readPlan{
		firstByte: base + beg/lineBases*lineWidth + beg%lineBases,
		n:         end - beg,
	}

	firstBases := lineBases - beg%lineBases
	if plan.n <= firstBases {
		plan.single = true
		return plan, nil
	}

	plan.firstBases = firstBases
	plan.firstRaw = lineWidth - beg%lineBases

	remaining := plan.n - firstBases
	plan.full = (remaining - 1) / lineBases
	plan.tail = remaining - plan.full*lineBases

	return plan, nil
}
