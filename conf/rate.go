package conf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultWindow = time.Minute

// Rate is an attempt budget: at most Events attempts per Window.
type Rate struct {
	Events int           `json:"events"`
	Window time.Duration `json:"window"`
}

// Decode is used by envconfig to parse values such as "5/1m" or "5".
// A bare number uses a one minute window.
func (r *Rate) Decode(value string) error {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		r.Events = n
		r.Window = defaultWindow
		return nil
	}

	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return fmt.Errorf("rate: value does not match rate syntax %q", value)
	}

	e, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("rate: events part of rate value %q failed to parse as int: %w", value, err)
	}

	d, err := time.ParseDuration(parts[1])
	if err != nil {
		return fmt.Errorf("rate: window part of rate value %q failed to parse as duration: %w", value, err)
	}

	r.Events = e
	r.Window = d
	return nil
}

// Validate rejects budgets that would block every attempt or never reset
func (r *Rate) Validate() error {
	if r.Events < 1 {
		return fmt.Errorf("rate: events must be at least 1, got %d", r.Events)
	}
	if r.Window <= 0 {
		return fmt.Errorf("rate: window must be positive, got %s", r.Window)
	}
	return nil
}

func (r *Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Events, r.Window)
}
