// Package balancer implements replica placement and selection for the
// directory service: write-coordinator rotation, initial replica-set
// assignment, and least-loaded read-replica selection.
package balancer

import (
	"errors"
	"sync"
)

// ErrNoReplicaAvailable is returned when a file's replica set is empty.
// It signals an operational problem, not a client error.
var ErrNoReplicaAvailable = errors.New("no replica available")

// ErrNoCoordinator is returned when no write coordinators are configured.
var ErrNoCoordinator = errors.New("no write coordinator configured")

// Balancer tracks per-node access counts and produces placement decisions.
// All state is process-wide and ephemeral; counters reset on restart.
type Balancer struct {
	coordinators []string
	nodes        []string

	mu       sync.Mutex
	next     int               // rotating coordinator index
	accesses map[string]uint64 // node address -> selections observed
}

// New creates a balancer over the configured coordinator and storage-node
// lists. Both lists are static for the life of the process.
func New(coordinators, nodes []string) *Balancer {
	return &Balancer{
		coordinators: coordinators,
		nodes:        nodes,
		accesses:     make(map[string]uint64),
	}
}

// NextCoordinator returns the coordinator a client should contact to start an
// upload, rotating round-robin across calls. A coordinator that is down is
// still offered; failure handling belongs to the caller.
func (b *Balancer) NextCoordinator() (string, error) {
	if len(b.coordinators) == 0 {
		return "", ErrNoCoordinator
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	addr := b.coordinators[b.next]
	b.next = (b.next + 1) % len(b.coordinators)
	return addr, nil
}

// AssignReplicas returns the replica set for a new file. Current policy is
// naive full replication: every known storage node holds a copy. The returned
// slice is a copy and safe to retain.
func (b *Balancer) AssignReplicas() []string {
	replicas := make([]string, len(b.nodes))
	copy(replicas, b.nodes)
	return replicas
}

// PickReplica selects the node with the lowest recorded access count among
// the given replica set and records the access. Ties resolve to the first
// node encountered in the set. The count is directory-observed selections,
// an approximation of load, not a measurement.
func (b *Balancer) PickReplica(replicas []string) (string, error) {
	if len(replicas) == 0 {
		return "", ErrNoReplicaAvailable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	selected := replicas[0]
	lowest := b.accesses[selected]
	for _, addr := range replicas[1:] {
		if count := b.accesses[addr]; count < lowest {
			selected, lowest = addr, count
		}
	}

	b.accesses[selected]++
	return selected, nil
}

// AccessCount reports the recorded access count for a node address.
func (b *Balancer) AccessCount(addr string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accesses[addr]
}
