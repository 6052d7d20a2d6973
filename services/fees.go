package services

import (
	"sync/atomic"

	"broker-ledger/models"
)

// FeeScheduleProvider supplies the current fee schedule. Rates are external
// configuration, never hard-coded in the engine.
type FeeScheduleProvider interface {
	Schedule() models.FeeSchedule
}

// ConfigFeeProvider holds a schedule that can be swapped at runtime without
// interrupting in-flight submissions.
type ConfigFeeProvider struct {
	current atomic.Pointer[models.FeeSchedule]
}

// NewConfigFeeProvider creates a provider with an initial schedule.
func NewConfigFeeProvider(schedule models.FeeSchedule) *ConfigFeeProvider {
	p := &ConfigFeeProvider{}
	p.current.Store(&schedule)
	return p
}

// Schedule returns the schedule in effect.
func (p *ConfigFeeProvider) Schedule() models.FeeSchedule {
	return *p.current.Load()
}

// Reload replaces the schedule in effect.
func (p *ConfigFeeProvider) Reload(schedule models.FeeSchedule) {
	p.current.Store(&schedule)
}
