package arenakit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BattleDirectory lists battles and builds their summaries
type BattleDirectory struct {
	sources     BattleSources
	concurrency int
}

// NewBattleDirectory creates a directory. Zero concurrency means DefaultSweepConcurrency.
func NewBattleDirectory(sources BattleSources, concurrency int) *BattleDirectory {
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &BattleDirectory{sources: sources, concurrency: concurrency}
}

// BattleIDs returns every battle id. When getAllBattleIds is missing or
// returns nothing, ids 0 through nextBattleId-1 are enumerated.
func (d *BattleDirectory) BattleIDs(ctx context.Context) ([]*big.Int, error) {
	ids, err := d.sources.AllBattleIDs(ctx)
	if err == nil && len(ids) > 0 {
		return ids, nil
	}
	if err != nil {
		zap.L().Debug("getAllBattleIds failed, enumerating from nextBattleId", zap.Error(err))
	}

	next, nextErr := d.sources.NextBattleID(ctx)
	if nextErr != nil {
		if err == nil {
			// the arena answered with an empty list
			zap.L().Debug("nextBattleId unavailable", zap.Error(nextErr))
			return ids, nil
		}
		return nil, fmt.Errorf("list battle ids: %w", nextErr)
	}
	if !next.IsInt64() {
		return nil, fmt.Errorf("list battle ids: nextBattleId %s out of range", next)
	}
	ids = make([]*big.Int, 0, max(next.Int64(), 0))
	for i := int64(0); i < next.Int64(); i++ {
		ids = append(ids, big.NewInt(i))
	}
	return ids, nil
}

// Summary reads one battle's snapshot
func (d *BattleDirectory) Summary(ctx context.Context, id *big.Int) (BattleSummary, error) {
	addr, err := d.sources.BattleAddress(ctx, id)
	if err != nil {
		return BattleSummary{}, err
	}
	if addr == (common.Address{}) {
		return BattleSummary{}, fmt.Errorf("%w: battle %s", ErrContractNotDeployed, id)
	}

	var (
		state     uint8
		challenge common.Address
		entryFee  *big.Int
		deadline  *big.Int
		winner    common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		state, err = d.sources.BattleState(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		challenge, err = d.sources.BattleChallenge(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		entryFee, err = d.sources.BattleEntryFee(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		deadline, err = d.sources.BattleDeadline(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		winner, err = d.sources.BattleWinner(gctx, addr)
		return err
	})
	if err := g.Wait(); err != nil {
		return BattleSummary{}, fmt.Errorf("read battle %s: %w", id, err)
	}

	summary := BattleSummary{
		ID:          new(big.Int).Set(id),
		Address:     addr,
		State:       BattleStateFromUint(state),
		Challenge:   challenge,
		EntryFee:    FormatEther(entryFee),
		DeadlineISO: formatDeadline(deadline),
	}
	if winner != (common.Address{}) {
		summary.Winner = &winner
	}
	return summary, nil
}

// List returns summaries of every battle in id order. Battles whose reads
// fail are logged and left out.
func (d *BattleDirectory) List(ctx context.Context) ([]BattleSummary, error) {
	ids, err := d.BattleIDs(ctx)
	if err != nil {
		return nil, err
	}
	return d.summaries(ctx, ids), nil
}

// CreatorPage is one page of a creator's battles
type CreatorPage struct {
	Battles []BattleSummary
	Total   int
	Page    int
	Pages   int
}

// CreatorBattles returns page (zero-based) of the battles created by creator.
// When the paged getter is missing, fails or yields nothing, the legacy
// getter's result is returned as a single page.
func (d *BattleDirectory) CreatorBattles(ctx context.Context, creator common.Address, page int) (CreatorPage, error) {
	if page < 0 {
		page = 0
	}
	count, err := d.sources.CreatorBattleCount(ctx, creator)
	if err != nil {
		zap.L().Debug("paged creator listing unavailable, using legacy getter", zap.Error(err))
		return d.legacyCreatorPage(ctx, creator, err)
	}

	total := int(count.Int64())
	if total == 0 {
		return d.legacyCreatorPage(ctx, creator, nil)
	}
	pages := (total + CreatorBattlesPageSize - 1) / CreatorBattlesPageSize
	out := CreatorPage{Total: total, Page: page, Pages: pages, Battles: []BattleSummary{}}
	if page >= pages {
		return out, nil
	}
	offset := big.NewInt(int64(page * CreatorBattlesPageSize))
	ids, err := d.sources.CreatorBattlesPage(ctx, creator, offset, big.NewInt(CreatorBattlesPageSize))
	if err != nil || len(ids) == 0 {
		zap.L().Debug("creator page unreadable, using legacy getter",
			zap.String("creator", creator.Hex()),
			zap.Int("page", page),
			zap.Error(err),
		)
		return d.legacyCreatorPage(ctx, creator, err)
	}
	out.Battles = d.summaries(ctx, ids)
	return out, nil
}

// legacyCreatorPage lists every battle of creator as one page. pagedErr is
// the paged listing's failure, if any; without one a legacy failure yields an
// empty page.
func (d *BattleDirectory) legacyCreatorPage(ctx context.Context, creator common.Address, pagedErr error) (CreatorPage, error) {
	ids, err := d.sources.CreatorBattles(ctx, creator)
	if err != nil {
		if pagedErr == nil {
			zap.L().Debug("legacy creator getter unavailable", zap.Error(err))
			return CreatorPage{Battles: []BattleSummary{}}, nil
		}
		return CreatorPage{}, fmt.Errorf("list battles of %s: %w", creator.Hex(), errors.Join(pagedErr, err))
	}
	return CreatorPage{Battles: d.summaries(ctx, ids), Total: len(ids), Page: 0, Pages: 1}, nil
}

func (d *BattleDirectory) summaries(ctx context.Context, ids []*big.Int) []BattleSummary {
	var (
		mu  sync.Mutex
		out = make([]BattleSummary, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s, err := d.Summary(gctx, id)
			if err != nil {
				zap.L().Warn("skipping unreadable battle", zap.String("battle_id", id.String()), zap.Error(err))
				return nil
			}
			mu.Lock()
			out = append(out, s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Cmp(out[j].ID) < 0 })
	return out
}

func formatDeadline(ts *big.Int) string {
	if ts == nil || !ts.IsInt64() {
		return ""
	}
	return time.Unix(ts.Int64(), 0).UTC().Format(time.RFC3339)
}
