package schedule

import (
	"sort"

	"github.com/trezcool/hagwon/core/student"
)

// minViableClassSize is the applicant count from which a slot is worth
// opening as a class.
const minViableClassSize = 3

var weekdayOrder = make(map[string]int, len(student.AllDays))

func init() {
	for i, day := range student.AllDays {
		weekdayOrder[day] = i
	}
}

// Entry is one availability row on the board.
type Entry struct {
	DayOfWeek   string `json:"day_of_week"`
	TimeSlot    string `json:"time_slot"`
	StudentName string `json:"student_name"`
}

type SlotSummary struct {
	DayOfWeek      string   `json:"day_of_week"`
	TimeSlot       string   `json:"time_slot"`
	ApplicantCount int      `json:"applicant_count"`
	StudentNames   []string `json:"student_names"`
	Recommended    bool     `json:"recommended"`
}

// Aggregate groups the entries by (day, slot) and counts applicants per
// slot. Summaries come back in weekday then slot order; names keep
// their first-seen order within a slot.
func Aggregate(entries []Entry) []SlotSummary {
	summaries := make([]SlotSummary, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, e := range entries {
		key := e.DayOfWeek + " " + e.TimeSlot
		i, ok := index[key]
		if !ok {
			i = len(summaries)
			index[key] = i
			summaries = append(summaries, SlotSummary{DayOfWeek: e.DayOfWeek, TimeSlot: e.TimeSlot})
		}
		summaries[i].ApplicantCount++
		summaries[i].StudentNames = append(summaries[i].StudentNames, e.StudentName)
	}

	for i := range summaries {
		summaries[i].Recommended = summaries[i].ApplicantCount >= minViableClassSize
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].DayOfWeek != summaries[j].DayOfWeek {
			return weekdayOrder[summaries[i].DayOfWeek] < weekdayOrder[summaries[j].DayOfWeek]
		}
		return summaries[i].TimeSlot < summaries[j].TimeSlot
	})
	return summaries
}
