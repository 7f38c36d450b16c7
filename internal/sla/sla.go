// Package sla computes due dates and breach risk for tickets.
package sla

import (
	"math"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// Risk classifies remaining time-to-due.
type Risk string

const (
	RiskSafe     Risk = "SAFE"
	RiskAtRisk   Risk = "AT_RISK"
	RiskBreached Risk = "BREACHED"
)

// atRiskRatio is the fraction of the SLA window below which a ticket is at risk.
const atRiskRatio = 0.20

var windows = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityLow:    5 * 24 * time.Hour,
	domain.TicketPriorityMedium: 3 * 24 * time.Hour,
	domain.TicketPriorityHigh:   24 * time.Hour,
	domain.TicketPriorityUrgent: 4 * time.Hour,
}

// Window returns the SLA duration for a priority. Unknown priorities get the
// MEDIUM window.
func Window(priority domain.TicketPriority) time.Duration {
	if w, ok := windows[priority]; ok {
		return w
	}
	return windows[domain.TicketPriorityMedium]
}

// ComputeDueAt returns the deadline for a ticket of the given priority opened at
// start. A zero start means now.
func ComputeDueAt(priority domain.TicketPriority, start time.Time) time.Time {
	if start.IsZero() {
		start = time.Now()
	}
	return start.Add(Window(priority))
}

// Status is the SLA snapshot of a ticket at a point in time.
type Status struct {
	RemainingMinutes int64
	Risk             Risk
}

// ComputeSLA evaluates remaining minutes and risk at now. It must be called on
// every read since the result depends only on the clock.
func ComputeSLA(createdAt, dueAt, now time.Time) Status {
	window := floorMinutes(dueAt.Sub(createdAt))
	if window < 1 {
		window = 1
	}
	remaining := floorMinutes(dueAt.Sub(now))

	risk := RiskSafe
	switch {
	case remaining < 0:
		risk = RiskBreached
	case float64(remaining)/float64(window) < atRiskRatio:
		risk = RiskAtRisk
	}
	return Status{RemainingMinutes: remaining, Risk: risk}
}

// floorMinutes rounds toward negative infinity so a deadline missed by a few
// seconds already reports -1.
func floorMinutes(d time.Duration) int64 {
	return int64(math.Floor(d.Minutes()))
}
