package arenakit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/battlechain/arenakit/internal/metrics"
	"github.com/battlechain/arenakit/kvstore"
)

const ownerLookupConcurrency = 8

// DiscoveryResult holds the agents owned by the account and the candidates
// whose owner could not be read
type DiscoveryResult struct {
	Agents []string `json:"agents"`
	Errors []string `json:"errors"`
}

// AgentDiscovery finds the agents an account owns from registration history
type AgentDiscovery struct {
	sources  AgentSources
	registry common.Address
	metrics  *metrics.Metrics
}

// NewAgentDiscovery creates a discovery over the registry contract
func NewAgentDiscovery(sources AgentSources, registry common.Address, m *metrics.Metrics) *AgentDiscovery {
	return &AgentDiscovery{sources: sources, registry: registry, metrics: m}
}

// Discover scans every AgentRegistered event from genesis and keeps the
// candidates whose owner() is account. A failed log query fails the call; a
// failed owner read is recorded in Errors and skipped.
func (d *AgentDiscovery) Discover(ctx context.Context, account common.Address) (DiscoveryResult, error) {
	deployed, err := d.sources.HasCode(ctx, d.registry)
	if err != nil {
		return DiscoveryResult{}, fmt.Errorf("check registry %s: %w", d.registry.Hex(), err)
	}
	if !deployed {
		return DiscoveryResult{}, fmt.Errorf("%w: registry %s", ErrContractNotDeployed, d.registry.Hex())
	}

	regs, err := d.sources.AgentRegistrations(ctx, 0, nil)
	if err != nil {
		return DiscoveryResult{}, err
	}

	seen := make(map[common.Address]struct{}, len(regs))
	candidates := make([]common.Address, 0, len(regs))
	for _, reg := range regs {
		if _, ok := seen[reg.Agent]; ok {
			continue
		}
		seen[reg.Agent] = struct{}{}
		candidates = append(candidates, reg.Agent)
	}

	owned := make([]bool, len(candidates))
	lookupErrs := make([]error, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ownerLookupConcurrency)
	for i, agent := range candidates {
		i, agent := i, agent
		g.Go(func() error {
			owner, err := d.sources.AgentOwner(gctx, agent)
			if err != nil {
				lookupErrs[i] = err
				return nil
			}
			owned[i] = owner == account
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return DiscoveryResult{}, err
	}

	result := DiscoveryResult{Agents: []string{}, Errors: []string{}}
	for i, agent := range candidates {
		switch {
		case lookupErrs[i] != nil:
			d.metrics.DiscoveryCandidateError()
			zap.L().Warn("agent owner lookup failed",
				zap.String("agent", agent.Hex()),
				zap.Error(lookupErrs[i]),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("owner lookup for %s failed: %v", agent.Hex(), lookupErrs[i]))
		case owned[i]:
			result.Agents = append(result.Agents, strings.ToLower(agent.Hex()))
		}
	}

	zap.L().Info("agent discovery finished",
		zap.String("account", account.Hex()),
		zap.Int("candidates", len(candidates)),
		zap.Int("owned", len(result.Agents)),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// normalizeAgent returns the lower-case form of a hex address
func normalizeAgent(addr string) (string, bool) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), true
}

// MergeSavedAgents returns the case-insensitive union of existing and
// discovered, keeping first-seen order. Invalid addresses are dropped and
// the output is lower-case.
func MergeSavedAgents(existing, discovered []string) []string {
	out := make([]string, 0, len(existing)+len(discovered))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{existing, discovered} {
		for _, addr := range list {
			norm, ok := normalizeAgent(addr)
			if !ok {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, norm)
		}
	}
	return out
}

// AgentBook is the persisted saved-agent set. Every write replaces the whole
// set after re-reading it.
type AgentBook struct {
	mu        sync.Mutex
	store     kvstore.Store
	key       string
	discovery *AgentDiscovery
}

// NewAgentBook creates a book stored under AgentStorageKey. discovery may be
// nil when Sync is not used.
func NewAgentBook(store kvstore.Store, discovery *AgentDiscovery) *AgentBook {
	return &AgentBook{store: store, key: AgentStorageKey, discovery: discovery}
}

func (b *AgentBook) load(ctx context.Context) ([]string, error) {
	raw, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("read saved agents: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		zap.L().Warn("saved agents unreadable, treating as empty", zap.Error(err))
		return []string{}, nil
	}
	return MergeSavedAgents(list, nil), nil
}

func (b *AgentBook) save(ctx context.Context, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode saved agents: %w", err)
	}
	if err := b.store.Set(ctx, b.key, string(raw)); err != nil {
		return fmt.Errorf("write saved agents: %w", err)
	}
	return nil
}

// List returns the saved agents
func (b *AgentBook) List(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Merge unions addrs into the saved set, writes it back and returns it
func (b *AgentBook) Merge(ctx context.Context, addrs []string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	merged := MergeSavedAgents(existing, addrs)
	if err := b.save(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Add saves one agent
func (b *AgentBook) Add(ctx context.Context, addr common.Address) ([]string, error) {
	return b.Merge(ctx, []string{addr.Hex()})
}

// Remove deletes one agent from the saved set
func (b *AgentBook) Remove(ctx context.Context, addr common.Address) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	target := strings.ToLower(addr.Hex())
	kept := make([]string, 0, len(existing))
	for _, a := range existing {
		if a != target {
			kept = append(kept, a)
		}
	}
	if err := b.save(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Sync discovers account's agents and merges them into the saved set.
// Discovery only adds; removals are explicit.
func (b *AgentBook) Sync(ctx context.Context, account common.Address) ([]string, DiscoveryResult, error) {
	if b.discovery == nil {
		return nil, DiscoveryResult{}, fmt.Errorf("agent book has no discovery configured")
	}
	found, err := b.discovery.Discover(ctx, account)
	if err != nil {
		return nil, DiscoveryResult{}, err
	}
	merged, err := b.Merge(ctx, found.Agents)
	if err != nil {
		return nil, found, err
	}
	return merged, found, nil
}
