package container

import (
	"papertrade/internal/application/port"
	"papertrade/internal/application/service"
	domainservice "papertrade/internal/domain/service"
	"papertrade/internal/event"
)

// Container wires the ledger and its derived analytics lazily.
type Container struct {
	ledger *service.Ledger
	bus    *event.Bus
	store  port.Store

	risk        *domainservice.RiskCalculator
	performance *domainservice.PerformanceAnalyzer
}

func New(ledger *service.Ledger, bus *event.Bus, store port.Store) *Container {
	return &Container{
		ledger: ledger,
		bus:    bus,
		store:  store,
	}
}

func (c *Container) Ledger() *service.Ledger { return c.ledger }

func (c *Container) Bus() *event.Bus { return c.bus }

func (c *Container) Store() port.Store { return c.store }

func (c *Container) Risk() *domainservice.RiskCalculator {
	if c.risk == nil {
		c.risk = domainservice.NewRiskCalculator()
	}
	return c.risk
}

func (c *Container) Performance() *domainservice.PerformanceAnalyzer {
	if c.performance == nil {
		c.performance = domainservice.NewPerformanceAnalyzer()
	}
	return c.performance
}

func (c *Container) Close() error {
	return c.store.Close()
}
