package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

// gasMarginPercent and gasMarginConstant pad the estimated gas so a
// narrowly-underestimated call does not fail:
// limit = estimate * 120 / 100 + 20000.
const (
	gasMarginPercent  = 120
	gasMarginConstant = 20000
)

// paddedGasLimit applies the safety margin to a gas estimate.
func paddedGasLimit(estimate uint64) uint64 {
	return estimate*gasMarginPercent/100 + gasMarginConstant
}

// EVMConfig configures the EVM anchor client.
type EVMConfig struct {
	// RPCURL is the ledger node's JSON-RPC endpoint.
	RPCURL string
	// ChainID selects the transaction signer.
	ChainID *big.Int
	// PrivateKeyHex signs anchoring transactions.
	PrivateKeyHex string
	// Contracts maps each entity kind to its anchor contract address.
	Contracts map[entity.Kind]common.Address
}

// EVMClient anchors digests on per-kind EVM contracts. One client serves
// all kinds; each call resolves the kind's contract address.
type EVMClient struct {
	eth       *ethclient.Client
	abi       abi.ABI
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	contracts map[entity.Kind]common.Address
	log       *slog.Logger
}

var _ Client = (*EVMClient)(nil)

// DialEVM connects to the ledger node and prepares the signing identity.
func DialEVM(ctx context.Context, cfg EVMConfig, log *slog.Logger) (*EVMClient, error) {
	if log == nil {
		log = slog.Default()
	}

	parsed, err := anchorABI()
	if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse signing key: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}

	return &EVMClient{
		eth:       eth,
		abi:       parsed,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:   cfg.ChainID,
		contracts: cfg.Contracts,
		log:       log,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.eth.Close()
}

// AnchorCreate implements Client.
func (c *EVMClient) AnchorCreate(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest) (Receipt, error) {
	return c.anchor(ctx, kind, id, d, "register", "Registered")
}

// AnchorUpdate implements Client.
func (c *EVMClient) AnchorUpdate(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest) (Receipt, error) {
	return c.anchor(ctx, kind, id, d, "update", "Updated")
}

// anchor submits one contract call and blocks until the ledger confirms
// it, then recovers the confirmed digest from the emitted event. Any
// failure aborts the operation; there is no retry at this layer.
func (c *EVMClient) anchor(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest, method, event string) (Receipt, error) {
	contract, err := c.contractFor(kind)
	if err != nil {
		return Receipt{}, err
	}

	d32, err := d.Bytes32()
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: %s %s: %w", method, kind, err)
	}

	data, err := c.abi.Pack(method, [16]byte(id), d32)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: pack %s call: %w", method, err)
	}

	estimate, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: estimate %s gas: %w", method, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: pending nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Gas:      paddedGasLimit(estimate),
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: sign %s tx: %w", method, err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, fmt.Errorf("ledger: send %s tx: %w", method, err)
	}

	c.log.Info("anchor transaction submitted",
		"kind", string(kind), "id", id.String(),
		"method", method, "tx", signed.Hash().Hex(), "gas", signed.Gas())

	// Blocks until mined. No timeout by default; ctx bounds the wait.
	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: await %s confirmation: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, fmt.Errorf("ledger: %s tx %s reverted", method, receipt.TxHash.Hex())
	}

	confirmed, err := extractConfirmedDigest(c.abi, contract, event, id, receipt)
	if err != nil {
		return Receipt{}, err
	}

	c.log.Info("anchor confirmed",
		"kind", string(kind), "id", id.String(),
		"tx", confirmed.TxRef, "digest", string(confirmed.ConfirmedDigest))
	return confirmed, nil
}

// Fetch implements Client. A reverting get call and an all-zero digest
// both mean the entity was never registered.
func (c *EVMClient) Fetch(ctx context.Context, kind entity.Kind, id uuid.UUID) (digest.Digest, bool, error) {
	contract, err := c.contractFor(kind)
	if err != nil {
		return "", false, err
	}

	data, err := c.abi.Pack("get", [16]byte(id))
	if err != nil {
		return "", false, fmt.Errorf("ledger: pack get call: %w", err)
	}

	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ledger: get %s %s: %w", kind, id, err)
	}

	vals, err := c.abi.Unpack("get", res)
	if err != nil {
		return "", false, fmt.Errorf("ledger: unpack get result: %w", err)
	}
	raw, err := getResultDigest(vals)
	if err != nil {
		return "", false, err
	}

	d := digest.FromBytes32(raw)
	if d.IsZero() {
		return "", false, nil
	}
	return d, true, nil
}

// getResultDigest pulls the bytes32 digest out of an unpacked get result.
func getResultDigest(vals []any) ([32]byte, error) {
	if len(vals) == 0 {
		return [32]byte{}, fmt.Errorf("ledger: get returned no values")
	}
	raw, ok := vals[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("ledger: get digest has type %T", vals[0])
	}
	return raw, nil
}

func (c *EVMClient) contractFor(kind entity.Kind) (common.Address, error) {
	addr, ok := c.contracts[kind]
	if !ok {
		return common.Address{}, fmt.Errorf("ledger: no contract configured for entity kind %q", kind)
	}
	return addr, nil
}
