// Package loadgen drives synthetic transfer traffic against a running
// cluster. Each worker loops over a pool of pre-funded test keys and
// issues transfers of its configured kind through an endpoint-agnostic
// Transferer.
package loadgen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyuho/avalanche-ops/internal/util/retry"
)

// Kind selects which chain a worker exercises.
type Kind string

const (
	// KindXTransfer issues native transfers on the exchange chain.
	KindXTransfer Kind = "x-transfer"
	// KindCTransfer issues native transfers on the contract chain.
	KindCTransfer Kind = "c-transfer"
	// KindSubnetEVMTransfer issues transfers against a subnet-evm
	// blockchain.
	KindSubnetEVMTransfer Kind = "subnet-evm-transfer"
)

// UnknownKindError reports an unrecognized load kind.
type UnknownKindError struct {
	Value string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown load kind %q", e.Value)
}

// ParseKind validates a load kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindXTransfer, KindCTransfer, KindSubnetEVMTransfer:
		return Kind(s), nil
	}
	return "", &UnknownKindError{Value: s}
}

// Transferer issues one transfer from the key at the given pool index.
// Implementations own all chain specifics; the generator only cares
// whether the transfer went through.
type Transferer interface {
	Transfer(ctx context.Context, kind Kind, keyIndex int) error
}

// Config parameterizes a generator run.
type Config struct {
	Kinds   []Kind
	Workers int
	// KeyPoolSize is the number of pre-funded keys workers rotate over.
	KeyPoolSize int
	// Interval is the pause between transfers per worker.
	Interval time.Duration
	// Attempts is the retry budget per transfer.
	Attempts      int
	RetryInterval time.Duration
}

// Generator fans transfer load out over worker goroutines.
type Generator struct {
	cfg      Config
	transfer Transferer
	logger   *slog.Logger

	mu        sync.Mutex
	completed uint64
	failed    uint64
}

// New validates the config and creates a generator.
func New(cfg Config, transfer Transferer, logger *slog.Logger) (*Generator, error) {
	if len(cfg.Kinds) == 0 {
		return nil, fmt.Errorf("at least one load kind is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.KeyPoolSize <= 0 {
		return nil, fmt.Errorf("key pool cannot be empty")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &Generator{cfg: cfg, transfer: transfer, logger: logger}, nil
}

// Run drives load until the context is cancelled. Transfer failures
// are counted and logged, never fatal; the run only ends with the
// context.
func (g *Generator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for worker := 0; worker < g.cfg.Workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			g.runWorker(ctx, worker)
		}(worker)
	}
	wg.Wait()
	return ctx.Err()
}

func (g *Generator) runWorker(ctx context.Context, worker int) {
	// Stagger key usage so workers do not contend on the same key.
	keyIndex := worker % g.cfg.KeyPoolSize
	kindIndex := worker % len(g.cfg.Kinds)

	for {
		if ctx.Err() != nil {
			return
		}

		kind := g.cfg.Kinds[kindIndex%len(g.cfg.Kinds)]
		err := retry.Fixed(ctx, g.cfg.Attempts, g.cfg.RetryInterval, func() error {
			return g.transfer.Transfer(ctx, kind, keyIndex)
		})

		g.mu.Lock()
		if err != nil {
			g.failed++
		} else {
			g.completed++
		}
		g.mu.Unlock()
		if err != nil && ctx.Err() == nil {
			g.logger.Warn("transfer failed",
				slog.String("kind", string(kind)),
				slog.Int("key_index", keyIndex),
				slog.String("error", err.Error()))
		}

		keyIndex = (keyIndex + 1) % g.cfg.KeyPoolSize
		kindIndex++

		if g.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(g.cfg.Interval):
			}
		}
	}
}

// Counts returns the completed and failed transfer totals.
func (g *Generator) Counts() (completed, failed uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed, g.failed
}
