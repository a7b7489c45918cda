package query

import (
	"fmt"
	"time"
)

// Date は時刻を持たない暦日。CustomRangeの境界に使う。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate は"YYYY-MM-DD"形式の文字列を解析する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf は時刻が属する暦日を、その時刻のLocationで返す。
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// StartOfDay はlocにおけるその日の00:00:00を返す。
func (d Date) StartOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// EndOfDay はlocにおけるその日の23:59:59を返す。秒未満は含めない。
func (d Date) EndOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, loc)
}

// String は"YYYY-MM-DD"形式で返す。
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
