package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core/student"
)

// Scoring weights. Payment dwarfs everything else so that any paid
// candidate outranks any unpaid one; the recency bonus only orders
// paid candidates among themselves.
const (
	paidWeight            int64 = 1_000_000
	recencyWindowSeconds  int64 = 10_000
	existingStudentWeight int64 = 5_000
	siblingWeight         int64 = 3_000
)

var errMissingPaymentDate = errors.New("missing payment date")

// Candidate is one student applying for a (day, slot) pair.
type Candidate struct {
	Name              string      `json:"name"`
	Grade             string      `json:"grade"`
	PaymentStatus     string      `json:"payment_status"`
	PaymentDate       null.String `json:"payment_date"` // RFC3339
	IsExistingStudent bool        `json:"is_existing_student"`
	HasSibling        bool        `json:"has_sibling"`

	// TimeSlotPriority is the student's own preference for this slot.
	// It is surfaced for the staff but never scored.
	TimeSlotPriority int `json:"time_slot_priority"`
}

type RankedCandidate struct {
	Rank int `json:"rank"`
	Candidate
	Score int64 `json:"score"`
}

// DataError reports a candidate whose stored data cannot be scored.
type DataError struct {
	Name string // candidate name
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad candidate data for %q: %v", e.Name, e.Err)
}

func IsDataError(err error) bool {
	_, ok := errors.Cause(err).(*DataError)
	return ok
}

type (
	RankOption func(*rankOptions)

	rankOptions struct {
		less func(a, b RankedCandidate) bool
	}
)

// WithLess replaces the default comparator (score descending).
func WithLess(less func(a, b RankedCandidate) bool) RankOption {
	return func(o *rankOptions) { o.less = less }
}

// Rank scores the candidates as of `at` and orders them best first with
// contiguous ranks from 1. The sort is stable: equal candidates keep
// their input (registration) order, so ranking an already-ranked list
// yields the same order back.
func Rank(cands []Candidate, at time.Time, opts ...RankOption) ([]RankedCandidate, error) {
	ranked := make([]RankedCandidate, 0, len(cands))
	for _, c := range cands {
		score, err := score(c, at)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedCandidate{Candidate: c, Score: score})
	}

	o := rankOptions{
		less: func(a, b RankedCandidate) bool { return a.Score > b.Score },
	}
	for _, opt := range opts {
		opt(&o)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return o.less(ranked[i], ranked[j]) })
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// score computes a candidate's priority as of `at`:
//   - paid: +1,000,000 and a linearly decaying recency bonus of
//     max(0, 10,000 - seconds since payment);
//   - existing student: +5,000;
//   - sibling enrolled: +3,000.
// A paid candidate without a parseable payment date is a DataError,
// never a silent score.
func score(c Candidate, at time.Time) (int64, error) {
	var s int64
	if c.PaymentStatus == student.PaymentPaid {
		if c.PaymentDate.String == "" {
			return 0, &DataError{Name: c.Name, Err: errMissingPaymentDate}
		}
		paidAt, err := time.Parse(time.RFC3339, c.PaymentDate.String)
		if err != nil {
			return 0, &DataError{Name: c.Name, Err: err}
		}
		s += paidWeight
		elapsed := int64(at.Sub(paidAt) / time.Second)
		if bonus := recencyWindowSeconds - elapsed; bonus > 0 {
			s += bonus
		}
	}
	if c.IsExistingStudent {
		s += existingStudentWeight
	}
	if c.HasSibling {
		s += siblingWeight
	}
	return s, nil
}
