// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/npos/fixed"

// SpanIndex identifies one slashing span of a stash.
type SpanIndex = uint32

// Span is a half-open [Start, End) range of eras. A zero End means the span
// is still open.
type Span struct {
	Index SpanIndex
	Start EraIndex
	End   EraIndex // exclusive; only valid when Open is false
	Open  bool
}

// Contains reports whether [era] falls inside the span.
func (s Span) Contains(era EraIndex) bool {
	if era < s.Start {
		return false
	}
	return s.Open || era < s.End
}

// SlashingSpans is the compact per-stash record of slashing history. Spans
// partition the eras since the stash last started fresh: one open span
// beginning at LastStart, preceded by Prior[i] closed spans of recorded
// lengths, newest first.
type SlashingSpans struct {
	// SpanIndex is the index of the current (open) span.
	SpanIndex SpanIndex `serialize:"true"`
	// LastStart is the first era of the current span.
	LastStart EraIndex `serialize:"true"`
	// LastNonzeroSlash is the era of the most recent nonzero slash.
	LastNonzeroSlash EraIndex `serialize:"true"`
	// Prior holds the lengths of closed spans, most recent first.
	Prior []EraIndex `serialize:"true"`
}

// NewSlashingSpans starts a fresh record whose open span begins at
// [windowStart].
func NewSlashingSpans(windowStart EraIndex) *SlashingSpans {
	return &SlashingSpans{LastStart: windowStart}
}

// Spans lists the stored spans, open span first, then closed spans newest
// first.
func (s *SlashingSpans) Spans() []Span {
	spans := make([]Span, 0, len(s.Prior)+1)
	spans = append(spans, Span{
		Index: s.SpanIndex,
		Start: s.LastStart,
		Open:  true,
	})
	end := s.LastStart
	index := s.SpanIndex
	for _, length := range s.Prior {
		index--
		start := end - length
		spans = append(spans, Span{
			Index: index,
			Start: start,
			End:   end,
		})
		end = start
	}
	return spans
}

// SpanContaining returns the span containing [era], if any.
func (s *SlashingSpans) SpanContaining(era EraIndex) (Span, bool) {
	for _, span := range s.Spans() {
		if span.Contains(era) {
			return span, true
		}
	}
	return Span{}, false
}

// EndSpan closes the current span at the end of era [now] and opens a new
// one, provided the current span has nonzero length. Returns whether a new
// span was opened.
func (s *SlashingSpans) EndSpan(now EraIndex) bool {
	nextStart := now + 1
	if nextStart <= s.LastStart {
		return false
	}
	s.Prior = append([]EraIndex{nextStart - s.LastStart}, s.Prior...)
	s.LastStart = nextStart
	s.SpanIndex++
	return true
}

// PruneBefore discards closed spans that ended before [windowStart] and
// clamps the remainder. Returns the index bounds [earliest, current] of the
// spans still stored, so span records outside them can be garbage collected.
func (s *SlashingSpans) PruneBefore(windowStart EraIndex) (earliest, current SpanIndex) {
	if s.LastStart < windowStart {
		// Whole history predates the window; keep only the open span,
		// re-anchored.
		s.LastStart = windowStart
		s.Prior = nil
		return s.SpanIndex, s.SpanIndex
	}
	end := s.LastStart
	index := s.SpanIndex
	kept := make([]EraIndex, 0, len(s.Prior))
	for _, length := range s.Prior {
		start := end - length
		if end <= windowStart {
			break
		}
		if start < windowStart {
			length = end - windowStart
		}
		kept = append(kept, length)
		end = start
		index--
	}
	s.Prior = kept
	return s.SpanIndex - SpanIndex(len(kept)), s.SpanIndex
}

// SpanRecord tracks the balance slashed and the reporter payout already
// made for one span, so repeat offences within a span only pay the
// difference.
type SpanRecord struct {
	Slashed uint64 `serialize:"true"`
	PaidOut uint64 `serialize:"true"`
}

// ValidatorSlash is the recorded slash of a validator in one era: the
// highest fraction applied so far and the amount it produced.
type ValidatorSlash struct {
	Fraction fixed.Perbill `serialize:"true"`
	Amount   uint64        `serialize:"true"`
}
