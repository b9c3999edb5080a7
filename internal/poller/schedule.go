package poller

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultInterval = time.Minute

// Schedule is a parsed poll schedule.
//
// Supported forms:
//   - Interval duration: "60s", "1m", "2h30m"
//   - Interval HH:MM: "00:05" (5 minutes)
//   - Cron: "*/2 * * * *", "@every 1m", "@hourly"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Schedule struct {
	Spec   cron.Schedule
	Every  time.Duration // zero for cron expressions
	Expr   string
	Source string // "cron" | "duration" | "hhmm"
}

func (s Schedule) String() string {
	if s.Every > 0 {
		return "every " + s.Every.String()
	}
	return s.Expr
}

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// EverySchedule wraps a fixed interval.
func EverySchedule(d time.Duration) Schedule {
	if d <= 0 {
		d = DefaultInterval
	}
	return Schedule{Spec: cron.Every(d), Every: d, Expr: d.String(), Source: "duration"}
}

// ParseSchedule parses a schedule string. Empty means DefaultInterval.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return EverySchedule(DefaultInterval), nil
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	// Whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if sch, err := parseInterval(s); err == nil {
		return sch, nil
	}
	return Schedule{}, fmt.Errorf(
		"invalid schedule %q (use a duration like '1m', HH:MM like '00:05', or cron like '*/2 * * * *')", raw)
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron schedule required")
	}
	spec, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	sch := Schedule{Spec: spec, Expr: expr, Source: "cron"}
	if c, ok := spec.(cron.ConstantDelaySchedule); ok {
		sch.Every = c.Delay
	}
	return sch, nil
}

func parseInterval(v string) (Schedule, error) {
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMM(v)
		if err != nil {
			return Schedule{}, err
		}
		sch := EverySchedule(d)
		sch.Source = "hhmm"
		return sch, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid interval %q (use HH:MM or a Go duration like '1m')", v)
	}
	if d < time.Second {
		return Schedule{}, fmt.Errorf("interval must be at least 1s")
	}
	return EverySchedule(d), nil
}

func parseHHMM(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
