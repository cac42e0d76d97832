package controller

import (
	"fmt"
	"sort"

	"vajraedge/internal/errors"
	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
)

// Distribution is one worker's share of a distributed test request.
type Distribution struct {
	Worker    types.WorkerInfo
	TargetTps uint32
}

// Distributor computes capacity-proportional TPS allocations across
// healthy workers.
type Distributor struct {
	workers    *WorkerManager
	minWorkers int
}

// NewDistributor constructs a Distributor over manager. minWorkers
// defaults to 1 when non-positive.
func NewDistributor(manager *WorkerManager, minWorkers int) *Distributor {
	if minWorkers <= 0 {
		minWorkers = 1
	}
	return &Distributor{workers: manager, minWorkers: minWorkers}
}

// Plan filters to HEALTHY workers supporting taskType, rejects with
// <InsufficientWorkers> if fewer than minWorkers qualify, and allocates
// targetTps proportional to each worker's available capacity share.
//
// Workers are ordered by available capacity descending, ties broken by
// workerId ascending for a deterministic plan; every worker but the last
// in that order receives floor(share), and the last receives whatever
// remains of targetTps so the allocations sum exactly.
func (d *Distributor) Plan(taskType string, targetTps uint32) ([]Distribution, error) {
	canon := tasks.Canonicalize(taskType)

	var candidates []types.WorkerInfo
	for _, w := range d.workers.Healthy() {
		if _, ok := w.SupportedTaskTypes[canon]; ok {
			candidates = append(candidates, w)
		}
	}

	if len(candidates) < d.minWorkers {
		return nil, errors.Coordination(fmt.Sprintf(
			"insufficient workers: need %d, have %d supporting %s", d.minWorkers, len(candidates), canon))
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i].AvailableCapacity(), candidates[j].AvailableCapacity()
		if ci != cj {
			return ci > cj
		}
		return candidates[i].WorkerID < candidates[j].WorkerID
	})

	var poolCapacity uint64
	for _, w := range candidates {
		poolCapacity += uint64(w.AvailableCapacity())
	}
	if poolCapacity == 0 {
		return nil, errors.Coordination("insufficient workers: pool capacity is zero")
	}

	plan := make([]Distribution, len(candidates))
	var assigned uint32
	for i, w := range candidates {
		if i == len(candidates)-1 {
			plan[i] = Distribution{Worker: w, TargetTps: targetTps - assigned}
			continue
		}
		share := uint32(uint64(targetTps) * uint64(w.AvailableCapacity()) / poolCapacity)
		plan[i] = Distribution{Worker: w, TargetTps: share}
		assigned += share
	}

	return plan, nil
}
