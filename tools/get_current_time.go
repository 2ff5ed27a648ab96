package tools

import (
	"context"
	"fmt"
	"time"
)

// CurrentTimeInput selects how the current time is reported.
type CurrentTimeInput struct {
	// Format is a Go reference-time layout; RFC 3339 when empty.
	Format string `json:"format,omitempty" jsonschema_description:"Go time layout, default 2006-01-02T15:04:05Z07:00"`

	// Location is an IANA time zone name; UTC when empty.
	Location string `json:"location,omitempty" jsonschema_description:"IANA time zone identifier (e.g., 'Asia/Colombo', 'America/New_York')"`
}

type CurrentTimeOutput struct {
	CurrentTime string `json:"currentTime"`
	Location    string `json:"location"`
	Weekday     string `json:"weekday"`
}

// Clock reports the current time. Now is replaceable in tests.
type Clock struct {
	Now func() time.Time
}

func NewClock() *Clock {
	return &Clock{Now: time.Now}
}

// CurrentTime lets agents date-stamp answers such as seasonal flu advice.
func (c *Clock) CurrentTime(ctx context.Context, input CurrentTimeInput) (CurrentTimeOutput, error) {
	format := input.Format
	if format == "" {
		format = time.RFC3339
	}

	loc := time.UTC
	if input.Location != "" {
		var err error
		loc, err = time.LoadLocation(input.Location)
		if err != nil {
			return CurrentTimeOutput{}, fmt.Errorf("invalid location: %w", err)
		}
	}

	now := c.Now().In(loc)
	return CurrentTimeOutput{
		CurrentTime: now.Format(format),
		Location:    loc.String(),
		Weekday:     now.Weekday().String(),
	}, nil
}
