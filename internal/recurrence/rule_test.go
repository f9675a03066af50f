package recurrence

import (
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func TestMatchesBeforeStartNeverFires(t *testing.T) {
	start := date(2024, 3, 10)
	rules := []Rule{
		{Kind: KindNone, StartDate: start, Interval: 1},
		{Kind: KindDaily, StartDate: start, Interval: 1},
		{Kind: KindWeekly, StartDate: start, Interval: 1, Weekdays: []int{WeekdaySunday, WeekdayMonday, WeekdayTuesday, WeekdayWednesday, WeekdayThursday, WeekdayFriday, WeekdaySaturday}},
	}

	for _, rule := range rules {
		for offset := 1; offset <= 10; offset++ {
			day := start.AddDate(0, 0, -offset)
			if rule.Matches(day, time.Local) {
				t.Fatalf("kind %s matched %s before start %s", rule.Kind, day.Format(DayKeyLayout), start.Format(DayKeyLayout))
			}
		}
	}
}

func TestMatchesNoneKind(t *testing.T) {
	start := date(2024, 5, 20)
	rule := Rule{Kind: KindNone, StartDate: start, Interval: 1}

	if !rule.Matches(start, time.Local) {
		t.Fatal("expected none rule to fire on start date")
	}
	// 同一自然日内的任意时刻都应命中
	if !rule.Matches(start.Add(15*time.Hour), time.Local) {
		t.Fatal("expected none rule to fire later the same day")
	}
	if rule.Matches(start.AddDate(0, 0, 1), time.Local) {
		t.Fatal("none rule fired after start date")
	}
}

func TestMatchesDailyWithInterval(t *testing.T) {
	rule := Rule{Kind: KindDaily, StartDate: date(2024, 1, 1), Interval: 2}

	expectations := map[string]bool{
		"2024-01-01": true,
		"2024-01-02": false,
		"2024-01-03": true,
		"2024-01-04": false,
		"2024-01-05": true,
	}

	for key, want := range expectations {
		day, err := ParseDayKey(key, time.Local)
		if err != nil {
			t.Fatalf("parse %s: %v", key, err)
		}
		if got := rule.Matches(day, time.Local); got != want {
			t.Fatalf("day %s: expected %v, got %v", key, want, got)
		}
	}
}

func TestMatchesDailyClampsInterval(t *testing.T) {
	rule := Rule{Kind: KindDaily, StartDate: date(2024, 1, 1), Interval: 0}

	for offset := 0; offset < 5; offset++ {
		day := date(2024, 1, 1).AddDate(0, 0, offset)
		if !rule.Matches(day, time.Local) {
			t.Fatalf("interval 0 should behave like 1, missed %s", day.Format(DayKeyLayout))
		}
	}
}

func TestMatchesWeeklyTwoWeekdays(t *testing.T) {
	// 2024-01-01 是周一
	start := date(2024, 1, 1)
	rule := Rule{
		Kind:      KindWeekly,
		StartDate: start,
		Interval:  1,
		Weekdays:  []int{WeekdayMonday, WeekdayThursday},
	}

	matched := 0
	for offset := 0; offset < 14; offset++ {
		if rule.Matches(start.AddDate(0, 0, offset), time.Local) {
			matched++
		}
	}

	if matched != 4 {
		t.Fatalf("expected 4 matches over 14 days, got %d", matched)
	}
}

func TestMatchesWeeklyInterval(t *testing.T) {
	// 隔周的周一：第 0、2、4 周命中
	start := date(2024, 1, 1)
	rule := Rule{
		Kind:      KindWeekly,
		StartDate: start,
		Interval:  2,
		Weekdays:  []int{WeekdayMonday},
	}

	cases := map[int]bool{
		0:  true,
		7:  false,
		14: true,
		21: false,
		28: true,
	}

	for offset, want := range cases {
		day := start.AddDate(0, 0, offset)
		if got := rule.Matches(day, time.Local); got != want {
			t.Fatalf("offset %d: expected %v, got %v", offset, want, got)
		}
	}
}

func TestMatchesWeeklyEmptyWeekdaysNeverFires(t *testing.T) {
	start := date(2024, 1, 1)
	rule := Rule{Kind: KindWeekly, StartDate: start, Interval: 1}

	for offset := 0; offset < 21; offset++ {
		if rule.Matches(start.AddDate(0, 0, offset), time.Local) {
			t.Fatal("weekly rule with empty weekday set should never fire")
		}
	}
}

func TestMatchesRespectsEndDate(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 1, 3)
	rule := Rule{Kind: KindDaily, StartDate: start, EndDate: &end, Interval: 1}

	if !rule.Matches(end, time.Local) {
		t.Fatal("end date itself should still match")
	}
	if rule.Matches(end.AddDate(0, 0, 1), time.Local) {
		t.Fatal("day after end date should not match")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	end := date(2024, 6, 30)
	rule := Rule{
		Kind:      KindWeekly,
		StartDate: date(2024, 1, 1),
		EndDate:   &end,
		Interval:  2,
		Weekdays:  []int{WeekdayMonday, WeekdayFriday},
	}

	blob, err := rule.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if decoded.Kind != rule.Kind || decoded.Interval != rule.Interval {
		t.Fatalf("unexpected decoded rule: %+v", decoded)
	}
	if !decoded.StartDate.Equal(rule.StartDate) {
		t.Fatalf("start date changed through round trip: %v", decoded.StartDate)
	}
	if decoded.EndDate == nil || !decoded.EndDate.Equal(end) {
		t.Fatalf("end date changed through round trip: %v", decoded.EndDate)
	}
	if len(decoded.Weekdays) != 2 {
		t.Fatalf("weekdays changed through round trip: %v", decoded.Weekdays)
	}
}

func TestDecodeOrDefaultFallsBackOnCorruption(t *testing.T) {
	for _, blob := range []string{"", "not json", `{"kind":"hourly"}`} {
		rule := DecodeOrDefault(blob)
		if rule.Kind != KindNone {
			t.Fatalf("blob %q: expected fallback to none, got %s", blob, rule.Kind)
		}
		// 缺省规则的零值开始日在任何常规日期都不触发
		if rule.Matches(date(2024, 1, 1), time.Local) {
			t.Fatalf("blob %q: fallback rule should not fire", blob)
		}
	}
}
