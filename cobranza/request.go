package cobranza

import "github.com/ealc/cobranza/generic"

// =============================================================================
// REQUEST - Explicit per-operation context
// =============================================================================

// ScheduleConfig bounds receipt generation.
type ScheduleConfig struct {
	GraceDays   int // how far back a missed installment is still generated
	HorizonDays int // how far ahead installments are generated
	MaxReceipts int // safety cap on receipt numbers per policy
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{GraceDays: 10, HorizonDays: 60, MaxReceipts: 36}
}

// withDefaults replaces non-positive values with the defaults. A zero grace
// period is a legitimate setting and is kept.
func (c ScheduleConfig) withDefaults() ScheduleConfig {
	d := DefaultScheduleConfig()
	if c.GraceDays < 0 {
		c.GraceDays = d.GraceDays
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.MaxReceipts <= 0 {
		c.MaxReceipts = d.MaxReceipts
	}
	return c
}

// Request carries everything an operation needs to know about the caller
// and the moment it runs. Nothing in this package reads the wall clock.
type Request struct {
	Today  generic.TimePoint
	Actor  string // recorded in audit comments
	Config ScheduleConfig
}

// NewRequest returns a request for today with the default configuration.
func NewRequest(today generic.TimePoint, actor string) Request {
	return Request{Today: today, Actor: actor, Config: DefaultScheduleConfig()}
}

// Window returns the generation window [today - grace, today + horizon].
func (r Request) Window() generic.Window {
	cfg := r.Config.withDefaults()
	return generic.RollingWindow(r.Today, cfg.GraceDays, cfg.HorizonDays)
}
