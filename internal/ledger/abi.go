package ledger

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/digest"
)

// anchorABIJSON is the shared interface shape every per-kind anchor
// contract exposes: register/update/get plus the Registered and Updated
// confirmation events. The entity id is the UUID's 16 raw bytes; the
// digest is the 32-byte SHA-256 value.
const anchorABIJSON = `[
	{"type":"function","name":"register","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes16"},{"name":"digest","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes16"},{"name":"newDigest","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"get","stateMutability":"view","inputs":[{"name":"id","type":"bytes16"}],"outputs":[{"name":"digest","type":"bytes32"},{"name":"submitter","type":"address"},{"name":"updatedAt","type":"uint256"}]},
	{"type":"event","name":"Registered","anonymous":false,"inputs":[{"name":"id","type":"bytes16","indexed":true},{"name":"digest","type":"bytes32","indexed":false},{"name":"submitter","type":"address","indexed":false},{"name":"confirmedAt","type":"uint256","indexed":false}]},
	{"type":"event","name":"Updated","anonymous":false,"inputs":[{"name":"id","type":"bytes16","indexed":true},{"name":"newDigest","type":"bytes32","indexed":false},{"name":"updater","type":"address","indexed":false},{"name":"confirmedAt","type":"uint256","indexed":false}]}
]`

// anchorABI parses the shared contract ABI. Called once at client
// construction; the JSON is a compile-time constant, so a parse failure
// is a programming error.
func anchorABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(anchorABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse anchor ABI: %w", err)
	}
	return parsed, nil
}

// idTopic renders the bytes16 entity id as its indexed topic value:
// left-aligned in the 32-byte topic word.
func idTopic(id uuid.UUID) common.Hash {
	var h common.Hash
	copy(h[:16], id[:])
	return h
}

// extractConfirmedDigest scans a confirmation receipt's logs for the
// expected event on the expected contract and recovers the digest the
// ledger recorded. Returns ErrEventMissing if no matching event exists -
// a mined transaction without its event is a contract invariant violation.
func extractConfirmedDigest(contractABI abi.ABI, contract common.Address, event string, id uuid.UUID, receipt *types.Receipt) (Receipt, error) {
	ev, ok := contractABI.Events[event]
	if !ok {
		return Receipt{}, fmt.Errorf("ledger: unknown event %q", event)
	}
	wantTopic := idTopic(id)

	for _, lg := range receipt.Logs {
		if lg.Address != contract {
			continue
		}
		if len(lg.Topics) < 2 || lg.Topics[0] != ev.ID {
			continue
		}
		if !bytes.Equal(lg.Topics[1][:16], wantTopic[:16]) {
			continue
		}

		vals, err := contractABI.Unpack(event, lg.Data)
		if err != nil {
			return Receipt{}, fmt.Errorf("ledger: unpack %s event: %w", event, err)
		}
		if len(vals) != 3 {
			return Receipt{}, fmt.Errorf("ledger: %s event has %d fields, want 3", event, len(vals))
		}

		confirmed, ok := vals[0].([32]byte)
		if !ok {
			return Receipt{}, fmt.Errorf("ledger: %s event digest has type %T", event, vals[0])
		}
		submitter, ok := vals[1].(common.Address)
		if !ok {
			return Receipt{}, fmt.Errorf("ledger: %s event submitter has type %T", event, vals[1])
		}
		confirmedAt, ok := vals[2].(*big.Int)
		if !ok {
			return Receipt{}, fmt.Errorf("ledger: %s event timestamp has type %T", event, vals[2])
		}

		return Receipt{
			TxRef:           receipt.TxHash.Hex(),
			ConfirmedDigest: digest.FromBytes32(confirmed),
			Submitter:       submitter.Hex(),
			ConfirmedAt:     time.Unix(confirmedAt.Int64(), 0).UTC(),
		}, nil
	}

	return Receipt{}, fmt.Errorf("%w: event %s, tx %s", ErrEventMissing, event, receipt.TxHash.Hex())
}
