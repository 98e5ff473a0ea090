package indexer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"agentScope/internal/chain"
)

// NegotiateRange finds the largest toBlock in [fromBlock, toBlock] for which
// a probe fetch succeeds, without knowing the provider's log-range cap in
// advance. Each rate-limit rejection halves the window; the first success
// wins. When the window drops below minRange the negotiator gives up and
// returns fromBlock, meaning no progress this run. Any non-rate-limit error
// propagates unchanged.
func NegotiateRange(
	ctx context.Context,
	source LogSource,
	address common.Address,
	fromBlock uint64,
	toBlock uint64,
	minRange uint64,
	logger *zap.Logger,
) (uint64, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minRange == 0 {
		minRange = 1
	}
	if toBlock <= fromBlock {
		return fromBlock, nil
	}

	for window := toBlock - fromBlock; window >= minRange; window /= 2 {
		_, err := source.FilterLogs(ctx, address, common.Hash{}, fromBlock, fromBlock+window)
		if err == nil {
			return fromBlock + window, nil
		}
		if !chain.IsRateLimited(err) {
			return 0, err
		}
		logger.Debug("range rejected, halving",
			zap.Uint64("from", fromBlock),
			zap.Uint64("window", window),
			zap.Error(err),
		)
	}

	return fromBlock, nil
}
