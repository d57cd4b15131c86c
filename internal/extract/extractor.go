package extract

import (
	"errors"
	"time"
)

var ErrNoPhoneOrMessage = errors.New("could not extract phone or message")

// Inbound is what a webhook body reduces to before code and platform detection.
type Inbound struct {
	Phone      string
	Text       string
	ReceivedAt string
}

// Strategy locates the sender and text in one particular payload shape.
// ReceivedAt is left empty when the payload does not carry one.
type Strategy interface {
	Name() string
	Extract(body map[string]any) (Inbound, bool)
}

type Extractor struct {
	strategies []Strategy
	now        func() time.Time
}

type Option func(*Extractor)

// WithoutRecursiveFallback drops the whole-document search, leaving only the
// structured and flat strategies.
func WithoutRecursiveFallback() Option {
	return func(e *Extractor) {
		kept := make([]Strategy, 0, len(e.strategies))
		for _, s := range e.strategies {
			if _, ok := s.(Recursive); ok {
				continue
			}
			kept = append(kept, s)
		}
		e.strategies = kept
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

func WithStrategies(s ...Strategy) Option {
	return func(e *Extractor) {
		e.strategies = s
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		strategies: []Strategy{Structured{}, Flat{}, Recursive{}},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse returns the first strategy result with both a phone and a message.
// The strategy name is returned for logging.
func (e *Extractor) Parse(body map[string]any) (Inbound, string, error) {
	for _, s := range e.strategies {
		in, ok := s.Extract(body)
		if !ok || in.Phone == "" || in.Text == "" {
			continue
		}
		if in.ReceivedAt == "" {
			in.ReceivedAt = FormatTimestamp(e.now())
		}
		return in, s.Name(), nil
	}
	return Inbound{}, "", ErrNoPhoneOrMessage
}

func (e *Extractor) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	return names
}

// timestampLayout keeps a fixed-width fraction so stored values sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders capture times the way they are stored and compared.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
