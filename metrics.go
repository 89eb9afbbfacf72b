// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/metric"
)

type stakingMetrics struct {
	numEras             metric.Counter
	numSlashesComputed  metric.Counter
	numSlashesApplied   metric.Counter
	numPayoutsExecuted  metric.Counter
	numSolutionsQueued  metric.Counter
	numOnChainElections metric.Counter
	totalBonded         metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*stakingMetrics, error) {
	m := &stakingMetrics{
		numEras: metric.NewCounter(metric.CounterOpts{
			Name: "staking_eras",
			Help: "Number of eras started",
		}),
		numSlashesComputed: metric.NewCounter(metric.CounterOpts{
			Name: "staking_slashes_computed",
			Help: "Number of offence reports that produced a slash",
		}),
		numSlashesApplied: metric.NewCounter(metric.CounterOpts{
			Name: "staking_slashes_applied",
			Help: "Number of slashes applied to ledgers",
		}),
		numPayoutsExecuted: metric.NewCounter(metric.CounterOpts{
			Name: "staking_payouts_executed",
			Help: "Number of scheduled reward payouts executed",
		}),
		numSolutionsQueued: metric.NewCounter(metric.CounterOpts{
			Name: "staking_solutions_queued",
			Help: "Number of submitted election solutions accepted",
		}),
		numOnChainElections: metric.NewCounter(metric.CounterOpts{
			Name: "staking_onchain_elections",
			Help: "Number of eras that fell back to the on-chain election",
		}),
		totalBonded: metric.NewGauge(metric.GaugeOpts{
			Name: "staking_total_bonded",
			Help: "Stake currently backing the elected validator set",
		}),
	}

	if err := registerer.Register(metric.AsCollector(m.numEras)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.numSlashesComputed)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.numSlashesApplied)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.numPayoutsExecuted)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.numSolutionsQueued)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.numOnChainElections)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.totalBonded)); err != nil {
		return nil, err
	}
	return m, nil
}
