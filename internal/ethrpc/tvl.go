package ethrpc

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const erc20ABIJSON = `[{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// TVLReader reads the liquidity ceiling for loan sizing: the balance of a
// token held by a lending contract.
type TVLReader interface {
	ReadTVL(ctx context.Context, chainID uint64, token, lender common.Address) (*big.Int, error)
}

// Reader resolves TVL through the shared RPC client manager.
type Reader struct {
	manager *Manager
	logger  zerolog.Logger
	timeout time.Duration
}

// NewReader builds a TVL reader. A non-positive timeout defaults to 10s.
func NewReader(manager *Manager, timeout time.Duration, logger zerolog.Logger) *Reader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reader{
		manager: manager,
		logger:  logger.With().Str("component", "tvl_reader").Logger(),
		timeout: timeout,
	}
}

// ReadTVL calls balanceOf(lender) on the token contract. The call is time
// bounded; any RPC failure is returned to the caller, who decides whether to
// fall back.
func (r *Reader) ReadTVL(ctx context.Context, chainID uint64, token, lender common.Address) (*big.Int, error) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, err := r.manager.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	payload, err := erc20ABI.Pack("balanceOf", lender)
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := erc20ABI.Unpack("balanceOf", res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.New("unexpected balanceOf response")
	}

	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode balanceOf output")
	}

	r.logger.Debug().
		Uint64("chain_id", chainID).
		Str("token", token.Hex()).
		Str("lender", lender.Hex()).
		Str("balance", balance.String()).
		Msg("tvl read")

	return balance, nil
}

var _ TVLReader = (*Reader)(nil)
