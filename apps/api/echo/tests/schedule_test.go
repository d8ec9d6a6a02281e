package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core/schedule"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
	testutil "github.com/trezcool/hagwon/tests"
)

func Test_scheduleApi_slots(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	mina := testutil.CreateStudent(t, stdRepo, "Mina Park", "E1", "", false, false)
	joon := testutil.CreateStudent(t, stdRepo, "Joon Kim", "E3", "", false, false)
	sora := testutil.CreateStudent(t, stdRepo, "Sora Lee", "E3", "", false, false)
	haru := testutil.CreateStudent(t, stdRepo, "Haru Choi", "E6", "", false, false)

	// registration order matters: names keep first-seen order per slot
	testutil.CreateAvailability(t, stdRepo, mina, "mon", "16:00", 1)
	testutil.CreateAvailability(t, stdRepo, joon, "mon", "16:00", 2)
	testutil.CreateAvailability(t, stdRepo, sora, "mon", "16:00", 1)
	testutil.CreateAvailability(t, stdRepo, haru, "mon", "15:00", 0)
	testutil.CreateAvailability(t, stdRepo, mina, "wed", "17:30", 3)
	testutil.CreateAvailability(t, stdRepo, joon, "wed", "17:30", 0)

	staffToken := getToken(t, staff)
	empty := marchallList(t, []interface{}{}...)

	monEarly := schedule.SlotSummary{
		DayOfWeek: "mon", TimeSlot: "15:00", ApplicantCount: 1,
		StudentNames: []string{"Haru Choi"},
	}
	monLate := schedule.SlotSummary{
		DayOfWeek: "mon", TimeSlot: "16:00", ApplicantCount: 3,
		StudentNames: []string{"Mina Park", "Joon Kim", "Sora Lee"},
		Recommended:  true,
	}
	wedSlot := schedule.SlotSummary{
		DayOfWeek: "wed", TimeSlot: "17:30", ApplicantCount: 2,
		StudentNames: []string{"Mina Park", "Joon Kim"},
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/schedule/slots", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "unknown day", path: "/v1/schedule/slots?day=lol", token: staffToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"day": "unknown day of week"}),
		},
		{name: "day without entries", path: "/v1/schedule/slots?day=fri", token: staffToken, wantData: empty},
		{
			name: "whole week", path: "/v1/schedule/slots", token: staffToken,
			wantData: marchallList(t, monEarly, monLate, wedSlot),
		},
		{
			name: "single day", path: "/v1/schedule/slots?day=mon", token: staffToken,
			wantData: marchallList(t, monEarly, monLate),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_scheduleApi_ranking(t *testing.T) {
	app := setup(t)

	path := func(day, slot string) string {
		v := make(url.Values)
		if day != "" {
			v.Add("day", day)
		}
		if slot != "" {
			v.Add("slot", slot)
		}
		return "/v1/schedule/ranking?" + v.Encode()
	}

	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)

	now := time.Now()
	paid24 := now.Add(-24 * time.Hour) // older than the recency window; no bonus
	paid48 := now.Add(-48 * time.Hour)

	mina := testutil.CreateStudent(t, stdRepo, "Mina Park", "E1", "", false, false)
	joon := testutil.CreateStudent(t, stdRepo, "Joon Kim", "E3", "", false, false)
	sora := testutil.CreateStudent(t, stdRepo, "Sora Lee", "E3", "", true, false)
	haru := testutil.CreateStudent(t, stdRepo, "Haru Choi", "E6", "", false, true)
	bora := testutil.CreateStudent(t, stdRepo, "Bora Jang", "E1", "", false, false)
	testutil.MarkStudentPaid(t, stdRepo, joon, paid24)
	testutil.MarkStudentPaid(t, stdRepo, haru, paid48)

	testutil.CreateAvailability(t, stdRepo, sora, "thu", "16:00", 1)
	testutil.CreateAvailability(t, stdRepo, joon, "thu", "16:00", 2)
	testutil.CreateAvailability(t, stdRepo, haru, "thu", "16:00", 3)
	testutil.CreateAvailability(t, stdRepo, mina, "thu", "16:00", 0)
	testutil.CreateAvailability(t, stdRepo, bora, "thu", "16:00", 0)

	// paid on record but no payment date; cannot be scored
	broken := testutil.CreateStudent(t, stdRepo, "Glitch Kid", "E2", "", false, false)
	broken.PaymentStatus = student.PaymentPaid
	if _, err := stdRepo.UpdateStudent(context.Background(), broken); err != nil {
		t.Fatalf("UpdateStudent() failed: %v", err)
	}
	testutil.CreateAvailability(t, stdRepo, broken, "sun", "10:00", 0)

	staffToken := getToken(t, staff)
	unknownDay := marchallObj(t, map[string]string{"day": "unknown day of week"})
	wantRanked := []schedule.RankedCandidate{
		{
			Rank: 1,
			Candidate: schedule.Candidate{
				Name: "Haru Choi", Grade: "E6", PaymentStatus: student.PaymentPaid,
				PaymentDate: null.StringFrom(paid48.UTC().Format(time.RFC3339)),
				HasSibling:  true, TimeSlotPriority: 3,
			},
			Score: 1_003_000,
		},
		{
			Rank: 2,
			Candidate: schedule.Candidate{
				Name: "Joon Kim", Grade: "E3", PaymentStatus: student.PaymentPaid,
				PaymentDate:      null.StringFrom(paid24.UTC().Format(time.RFC3339)),
				TimeSlotPriority: 2,
			},
			Score: 1_000_000,
		},
		{
			Rank: 3,
			Candidate: schedule.Candidate{
				Name: "Sora Lee", Grade: "E3", PaymentStatus: student.PaymentUnpaid,
				IsExistingStudent: true, TimeSlotPriority: 1,
			},
			Score: 5_000,
		},
		{
			Rank:      4,
			Candidate: schedule.Candidate{Name: "Mina Park", Grade: "E1", PaymentStatus: student.PaymentUnpaid},
		},
		{
			Rank:      5,
			Candidate: schedule.Candidate{Name: "Bora Jang", Grade: "E1", PaymentStatus: student.PaymentUnpaid},
		},
	}

	tests := []httpTest{
		{name: "Auth required", path: path("thu", "16:00"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "day is required", path: path("", "16:00"), token: staffToken, wantCode: http.StatusBadRequest, wantData: unknownDay},
		{name: "unknown day", path: path("monday", "16:00"), token: staffToken, wantCode: http.StatusBadRequest, wantData: unknownDay},
		{
			name: "invalid slot", path: path("thu", "4pm"), token: staffToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"slot": "invalid time slot"}),
		},
		{
			name: "slot without candidates", path: path("thu", "09:00"), token: staffToken,
			wantData: marchallList(t, []interface{}{}...),
		},
		{name: "ranked by score", path: path("thu", "16:00"), token: staffToken, wantData: marchallObj(t, wantRanked)},
		{
			name: "unscorable candidate", path: path("sun", "10:00"), token: staffToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, httpErr{Error: `bad candidate data for "Glitch Kid": missing payment date`}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
