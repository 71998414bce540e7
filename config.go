package statusbar

import (
	"errors"
	"fmt"
	"net/url"
)

// Config names the status endpoint and payload fields.
//
// A job's status URL is URL followed by the job id and a trailing slash.
// The concatenation is literal, so URL normally ends with "/".
type Config struct {
	// URL is the base URL of the status endpoint, e.g. "https://host/progress/".
	URL string

	// AttrName is the attribute on the starting marker holding the job id.
	AttrName string

	// PercentageKey is the payload key holding the percentage.
	// Dot notation reaches nested fields ("data.percentage").
	PercentageKey string

	// StatusKey is the payload key holding the status text.
	StatusKey string
}

// DefaultConfig returns a Config with the conventional payload keys and
// attribute name. URL must still be set.
func DefaultConfig() Config {
	return Config{
		AttrName:      "data-job",
		PercentageKey: "percentage",
		StatusKey:     "status",
	}
}

// Validate checks that every field is set and URL is an absolute
// http or https URL.
func (c Config) Validate() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("invalid url: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("url must be an absolute http or https URL, got %q", c.URL))
	}

	if c.AttrName == "" {
		errs = append(errs, errors.New("attr name is required"))
	}
	if c.PercentageKey == "" {
		errs = append(errs, errors.New("percentage key is required"))
	}
	if c.StatusKey == "" {
		errs = append(errs, errors.New("status key is required"))
	}

	return errors.Join(errs...)
}

// jobURL returns the status endpoint for a job id.
func (c Config) jobURL(id string) string {
	return c.URL + id + "/"
}
