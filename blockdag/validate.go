package blockdag

import (
	"time"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
)

// ValidateBlock performs every check that does not require mutating
// storage: size, tip shape, height arithmetic, timestamp bounds, and each
// transaction's own well-formedness (signature, registration mini-PoW,
// exactly one coinbase matching the expected reward). Proof of work is not
// checked here; DAG.Commit checks tip existence and proof of work before it
// calls ValidateBlock.
func ValidateBlock(block *Block, provider DifficultyProvider, expectedReward uint64, now time.Time) error {
	header := block.Header

	if block.Size() > dagconfig.MaxBlockSize {
		return errcode.New(errcode.InvalidFrame, "block size %d exceeds maximum %d", block.Size(), dagconfig.MaxBlockSize)
	}

	if err := header.ValidateTips(); err != nil {
		return err
	}

	maxTipHeight, maxTipTimestamp, err := tipExtremes(provider, header.Tips)
	if err != nil {
		return err
	}
	if header.Height != maxTipHeight+1 {
		return errcode.New(errcode.InvalidTips, "height %d must be 1 + max tip height %d", header.Height, maxTipHeight)
	}
	if header.TimestampMs < maxTipTimestamp {
		return errcode.New(errcode.InvalidTimestamp, "timestamp %d precedes tip timestamp %d", header.TimestampMs, maxTipTimestamp)
	}
	nowMs := uint64(now.UnixMilli())
	if header.TimestampMs > nowMs+dagconfig.TimestampInFutureLimitMillis {
		return errcode.New(errcode.InvalidTimestamp, "timestamp %d too far in the future", header.TimestampMs)
	}

	if len(header.TxHashes) != len(block.Txs) {
		return errcode.New(errcode.InvalidFrame, "tx_hashes length %d does not match body length %d", len(header.TxHashes), len(block.Txs))
	}

	var coinbaseCount int
	var coinbaseAmount uint64
	for i, tx := range block.Txs {
		if tx.Hash() != header.TxHashes[i] {
			return errcode.New(errcode.InvalidFrame, "tx at index %d does not match declared hash", i)
		}
		if err := validateTransactionShape(tx); err != nil {
			return err
		}
		if tx.IsCoinbase() {
			coinbaseCount++
			coinbaseAmount = tx.Data.Coinbase.Amount
		}
	}
	if coinbaseCount != 1 {
		return errcode.New(errcode.InvalidFrame, "block must carry exactly one coinbase transaction, found %d", coinbaseCount)
	}
	if coinbaseAmount != expectedReward {
		return errcode.New(errcode.InvalidFrame, "coinbase amount %d does not match expected reward %d", coinbaseAmount, expectedReward)
	}

	return nil
}

func tipExtremes(provider DifficultyProvider, tips []crypto.Hash) (maxHeight, maxTimestamp uint64, err error) {
	first := true
	for _, tip := range tips {
		height, err := provider.GetHeightForBlockHash(tip)
		if err != nil {
			return 0, 0, errcode.New(errcode.InvalidTips, "unresolvable tip %s: %s", tip, err)
		}
		timestamp, err := provider.GetTimestampForBlockHash(tip)
		if err != nil {
			return 0, 0, errcode.New(errcode.InvalidTips, "unresolvable tip %s: %s", tip, err)
		}
		if first || height > maxHeight {
			maxHeight = height
		}
		if first || timestamp > maxTimestamp {
			maxTimestamp = timestamp
		}
		first = false
	}
	return maxHeight, maxTimestamp, nil
}

// validateTransactionShape checks a transaction's own well-formedness,
// independent of block context: signature, or registration mini-PoW.
func validateTransactionShape(tx *Transaction) error {
	if tx.IsRegistration() {
		if !CheckProofOfWork(tx.Hash(), dagconfig.RegistrationDifficulty) {
			return errcode.New(errcode.InvalidPoW, "registration tx %s fails mini-proof-of-work", tx.Hash())
		}
		return nil
	}
	if !tx.VerifySignature() {
		return errcode.New(errcode.InvalidSignature, "transaction %s carries an invalid signature", tx.Hash())
	}
	return nil
}
