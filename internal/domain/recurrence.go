package domain

import "fmt"

// RecurrenceShape selects which fields of a RecurrenceSpec are meaningful.
type RecurrenceShape string

const (
	RecurrenceEveryNMinutes RecurrenceShape = "every_n_minutes"
	RecurrenceEveryNHours   RecurrenceShape = "every_n_hours"
	RecurrenceDaily         RecurrenceShape = "daily"
	RecurrenceWeekly        RecurrenceShape = "weekly"
	RecurrenceMonthly       RecurrenceShape = "monthly"
)

const (
	maxHour       = 23
	maxMinute     = 59
	minWeekday    = 1 // Monday
	maxWeekday    = 7 // Sunday
	minDayOfMonth = 1
	maxDayOfMonth = 31
)

// RecurrenceSpec describes how often a query entry is refreshed.
// Weekday uses ISO numbering: Monday is 1 and Sunday is 7.
type RecurrenceSpec struct {
	Shape      RecurrenceShape `db:"shape"          json:"shape"        yaml:"shape"`
	Interval   *int            `db:"interval_count" json:"interval"     yaml:"interval"`
	Hour       *int            `db:"hour"           json:"hour"         yaml:"hour"`
	Minute     *int            `db:"minute"         json:"minute"       yaml:"minute"`
	Weekday    *int            `db:"weekday"        json:"weekday"      yaml:"weekday"`
	DayOfMonth *int            `db:"day_of_month"   json:"day_of_month" yaml:"day_of_month"`
}

// EveryNMinutes builds a validated minute-interval rule.
func EveryNMinutes(n int) (*RecurrenceSpec, error) {
	return NewRecurrenceSpec(RecurrenceSpec{Shape: RecurrenceEveryNMinutes, Interval: &n})
}

// EveryNHours builds a validated hour-interval rule.
func EveryNHours(n int) (*RecurrenceSpec, error) {
	return NewRecurrenceSpec(RecurrenceSpec{Shape: RecurrenceEveryNHours, Interval: &n})
}

// Daily builds a validated daily rule firing at hour:minute.
func Daily(hour, minute int) (*RecurrenceSpec, error) {
	return NewRecurrenceSpec(RecurrenceSpec{Shape: RecurrenceDaily, Hour: &hour, Minute: &minute})
}

// Weekly builds a validated weekly rule firing on the ISO weekday at hour:minute.
func Weekly(weekday, hour, minute int) (*RecurrenceSpec, error) {
	return NewRecurrenceSpec(RecurrenceSpec{
		Shape: RecurrenceWeekly, Weekday: &weekday, Hour: &hour, Minute: &minute,
	})
}

// Monthly builds a validated monthly rule firing on day at hour:minute.
func Monthly(day, hour, minute int) (*RecurrenceSpec, error) {
	return NewRecurrenceSpec(RecurrenceSpec{
		Shape: RecurrenceMonthly, DayOfMonth: &day, Hour: &hour, Minute: &minute,
	})
}

// NewRecurrenceSpec validates spec and returns a copy of it.
func NewRecurrenceSpec(spec RecurrenceSpec) (*RecurrenceSpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks that exactly the fields required by the shape are set and in range.
func (r *RecurrenceSpec) Validate() error {
	switch r.Shape {
	case RecurrenceEveryNMinutes, RecurrenceEveryNHours:
		if r.Interval == nil {
			return fmt.Errorf("%w: %s requires interval", ErrValidation, r.Shape)
		}
		if *r.Interval < 1 {
			return fmt.Errorf("%w: interval must be positive, got %d", ErrValidation, *r.Interval)
		}
		return r.rejectExtra(
			field{"hour", r.Hour}, field{"minute", r.Minute},
			field{"weekday", r.Weekday}, field{"day_of_month", r.DayOfMonth},
		)

	case RecurrenceDaily:
		if err := r.validateTimeOfDay(); err != nil {
			return err
		}
		return r.rejectExtra(field{"interval", r.Interval}, field{"weekday", r.Weekday}, field{"day_of_month", r.DayOfMonth})

	case RecurrenceWeekly:
		if err := r.validateTimeOfDay(); err != nil {
			return err
		}
		if r.Weekday == nil {
			return fmt.Errorf("%w: weekly requires weekday", ErrValidation)
		}
		if *r.Weekday < minWeekday || *r.Weekday > maxWeekday {
			return fmt.Errorf("%w: weekday must be between %d and %d, got %d",
				ErrValidation, minWeekday, maxWeekday, *r.Weekday)
		}
		return r.rejectExtra(field{"interval", r.Interval}, field{"day_of_month", r.DayOfMonth})

	case RecurrenceMonthly:
		if err := r.validateTimeOfDay(); err != nil {
			return err
		}
		if r.DayOfMonth == nil {
			return fmt.Errorf("%w: monthly requires day_of_month", ErrValidation)
		}
		if *r.DayOfMonth < minDayOfMonth || *r.DayOfMonth > maxDayOfMonth {
			return fmt.Errorf("%w: day_of_month must be between %d and %d, got %d",
				ErrValidation, minDayOfMonth, maxDayOfMonth, *r.DayOfMonth)
		}
		return r.rejectExtra(field{"interval", r.Interval}, field{"weekday", r.Weekday})

	default:
		return fmt.Errorf("%w: unknown recurrence shape %q", ErrValidation, r.Shape)
	}
}

func (r *RecurrenceSpec) validateTimeOfDay() error {
	if r.Hour == nil || r.Minute == nil {
		return fmt.Errorf("%w: %s requires hour and minute", ErrValidation, r.Shape)
	}
	if *r.Hour < 0 || *r.Hour > maxHour {
		return fmt.Errorf("%w: hour must be between 0 and %d, got %d", ErrValidation, maxHour, *r.Hour)
	}
	if *r.Minute < 0 || *r.Minute > maxMinute {
		return fmt.Errorf("%w: minute must be between 0 and %d, got %d", ErrValidation, maxMinute, *r.Minute)
	}
	return nil
}

type field struct {
	name  string
	value *int
}

// rejectExtra fails on the first field that belongs to another shape.
func (r *RecurrenceSpec) rejectExtra(fields ...field) error {
	for _, f := range fields {
		if f.value != nil {
			return fmt.Errorf("%w: %s does not take %s", ErrValidation, r.Shape, f.name)
		}
	}
	return nil
}
