package core

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// YearMonth is a calendar month. The zero value means "no month".
type YearMonth struct {
	Year  int
	Month time.Month
}

var ErrInvalidYearMonth = errors.New("invalid year-month, expected YYYY-MM")

// ParseYearMonth parses "YYYY-MM". The empty string yields the zero YearMonth.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return YearMonth{}, nil
	}
	y, m, ok := strings.Cut(s, "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return YearMonth{}, ErrInvalidYearMonth
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 {
		return YearMonth{}, ErrInvalidYearMonth
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return YearMonth{}, ErrInvalidYearMonth
	}
	return YearMonth{Year: year, Month: time.Month(month)}, nil
}

// MustYearMonth is ParseYearMonth for constants known to be valid.
func MustYearMonth(s string) YearMonth {
	ym, err := ParseYearMonth(s)
	if err != nil {
		panic(err)
	}
	return ym
}

func (ym YearMonth) IsZero() bool {
	return ym == YearMonth{}
}

// String renders the zero-padded YYYY-MM form, so string order is chronological.
func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Next returns the following calendar month, rolling over the year.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Days returns the number of days in the month.
func (ym YearMonth) Days() int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Before reports whether ym is an earlier month than other.
func (ym YearMonth) Before(other YearMonth) bool {
	return ym.Compare(other) < 0
}

func (ym YearMonth) Compare(other YearMonth) int {
	if ym.Year != other.Year {
		return ym.Year - other.Year
	}
	return int(ym.Month) - int(other.Month)
}

// Clamp returns the date in ym for the given day, capped at the month's last day.
func (ym YearMonth) Clamp(day int) Date {
	return NewDate(ym.Year, int(ym.Month), min(day, ym.Days()))
}

// MonthOf returns the month containing now in loc.
func MonthOf(now time.Time, loc *time.Location) YearMonth {
	if loc != nil {
		now = now.In(loc)
	}
	return YearMonth{Year: now.Year(), Month: now.Month()}
}

// Catalog returns the distinct non-empty reference months of txs in ascending order.
func Catalog(txs []Transaction) []YearMonth {
	seen := make(map[YearMonth]struct{})
	months := make([]YearMonth, 0)
	for _, t := range txs {
		if t.ReferenceMonth.IsZero() {
			continue
		}
		if _, ok := seen[t.ReferenceMonth]; ok {
			continue
		}
		seen[t.ReferenceMonth] = struct{}{}
		months = append(months, t.ReferenceMonth)
	}
	slices.SortFunc(months, YearMonth.Compare)
	return months
}

// SelectMonth picks the month a summary view should show.
//
// A current selection that is still in the catalog is kept. Otherwise the
// month of now wins when present, falling back to the latest catalog month.
// An empty catalog yields the zero month.
func SelectMonth(current YearMonth, catalog []YearMonth, now YearMonth) YearMonth {
	if !current.IsZero() && slices.Contains(catalog, current) {
		return current
	}
	if len(catalog) == 0 {
		return YearMonth{}
	}
	if slices.Contains(catalog, now) {
		return now
	}
	return catalog[len(catalog)-1]
}

// MonthRange lists every month from start to end inclusive.
func MonthRange(start, end YearMonth) []YearMonth {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	var months []YearMonth
	for m := start; !end.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// DefaultFormMonth is the preselected month of the input form: now when it is
// one of the options, otherwise the first option.
func DefaultFormMonth(options []YearMonth, now YearMonth) YearMonth {
	if len(options) == 0 {
		return YearMonth{}
	}
	if slices.Contains(options, now) {
		return now
	}
	return options[0]
}

var monthNamesPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatMonthLabel renders a month as its pt-BR long form, e.g. "junho de 2025".
func FormatMonthLabel(ym YearMonth) string {
	if ym.IsZero() || ym.Month < time.January || ym.Month > time.December {
		return ""
	}
	return fmt.Sprintf("%s de %d", monthNamesPT[ym.Month-1], ym.Year)
}
