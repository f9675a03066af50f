package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// DayKeyLayout 是日期桶的规范格式
const DayKeyLayout = "2006-01-02"

// DayKey 将时间点归一化为所在自然日的规范字符串桶
// 同一自然日内的任意两个时间点会收敛到同一个 key
func DayKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(DayKeyLayout)
}

// ParseDayKey 将日期桶还原为对应时区的当日零点，是 DayKey 的左逆
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	trimmed := strings.TrimSpace(key)
	t, err := time.ParseInLocation(DayKeyLayout, trimmed, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", key, err)
	}
	return t, nil
}
