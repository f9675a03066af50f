package recurrence

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind 表示循环规则的类型
type Kind string

const (
	// KindNone 表示单次活动，仅在开始日当天生效
	KindNone Kind = "none"
	// KindDaily 表示按天循环
	KindDaily Kind = "daily"
	// KindWeekly 表示按周循环，需配合 Weekdays 使用
	KindWeekly Kind = "weekly"
)

// 星期枚举采用 1=周日 … 7=周六，与持久化格式保持一致
const (
	WeekdaySunday    = 1
	WeekdayMonday    = 2
	WeekdayTuesday   = 3
	WeekdayWednesday = 4
	WeekdayThursday  = 5
	WeekdayFriday    = 6
	WeekdaySaturday  = 7
)

// Rule 描述一条循环规则，纯数据值类型
// StartDate 为生效下限（含），EndDate 为可选上限（含），均按自然日处理
// Interval 小于 1 时按 1 计算；Weekdays 仅在 KindWeekly 下参与判定
type Rule struct {
	Kind      Kind       `json:"kind"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Interval  int        `json:"interval"`
	Weekdays  []int      `json:"weekdays,omitempty"`
}

// Default 返回缺省规则：单次、零值开始日，等价于永不触发
func Default() Rule {
	return Rule{Kind: KindNone, Interval: 1}
}

// Encode 将规则序列化为 JSON 文本，作为模板的循环配置存储
func (r Rule) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode recurrence rule: %w", err)
	}
	return string(data), nil
}

// Decode 从 JSON 文本还原规则
func Decode(blob string) (Rule, error) {
	var rule Rule
	if err := json.Unmarshal([]byte(blob), &rule); err != nil {
		return Rule{}, fmt.Errorf("decode recurrence rule: %w", err)
	}
	if rule.Kind != KindNone && rule.Kind != KindDaily && rule.Kind != KindWeekly {
		return Rule{}, fmt.Errorf("decode recurrence rule: unknown kind %q", rule.Kind)
	}
	return rule, nil
}

// DecodeOrDefault 在配置损坏时回退到缺省规则，单个损坏模板不应影响其他模板的生成
func DecodeOrDefault(blob string) Rule {
	rule, err := Decode(blob)
	if err != nil {
		return Default()
	}
	return rule
}

// Matches 判断规则在指定日期是否触发，无副作用
// day 与规则中的日期均归一化到 loc 时区的当日零点后再比较
func (r Rule) Matches(day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}

	d := StartOfDay(day, loc)
	start := StartOfDay(r.StartDate, loc)

	if d.Before(start) {
		return false
	}
	if r.EndDate != nil && d.After(StartOfDay(*r.EndDate, loc)) {
		return false
	}

	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	switch r.Kind {
	case KindNone:
		return d.Equal(start)
	case KindDaily:
		diff := wholeDaysBetween(start, d)
		return diff >= 0 && diff%interval == 0
	case KindWeekly:
		weekDiff := wholeWeeksBetween(start, d)
		if weekDiff < 0 || weekDiff%interval != 0 {
			return false
		}
		weekday := WeekdayOf(d)
		for _, candidate := range r.Weekdays {
			if candidate == weekday {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// WeekdayOf 返回日期对应的星期枚举（1=周日 … 7=周六）
func WeekdayOf(day time.Time) int {
	return int(day.Weekday()) + 1
}

// StartOfDay 归一化到指定时区的当日零点
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// wholeDaysBetween 计算两个当日零点之间的自然日差
// 四舍五入吸收夏令时导致的 ±1 小时偏移
func wholeDaysBetween(start, day time.Time) int {
	return int(math.Round(day.Sub(start).Hours() / 24.0))
}

// wholeWeeksBetween 计算两个日期所在周（周一为一周起点）之间的整周差
func wholeWeeksBetween(start, day time.Time) int {
	return wholeDaysBetween(weekStart(start), weekStart(day)) / 7
}

func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
