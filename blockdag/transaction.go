package blockdag

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/errcode"
	"github.com/shadowdag/shadowd/serializer"
)

// TransactionVariant tags which payload a Transaction carries. The byte
// values below are load-bearing: they are part of the hashed, signed
// encoding and must never be renumbered.
type TransactionVariant uint8

const (
	VariantBurn TransactionVariant = iota
	VariantNormal
	VariantRegistration
	VariantSmartContract
	VariantCoinbase
	VariantUploadSmartContract
)

// Output is one recipient of a Normal transaction.
type Output struct {
	Amount crypto.CompressedCiphertext
	To     crypto.PublicKey
}

func (o Output) write(w *serializer.Writer) {
	w.WriteSerializer(o.Amount)
	w.WriteSerializer(o.To)
}

func readOutput(r *serializer.Reader) (Output, error) {
	var o Output
	amount, err := crypto.ReadCompressedCiphertext(r)
	if err != nil {
		return o, err
	}
	to, err := crypto.ReadPublicKey(r)
	if err != nil {
		return o, err
	}
	o.Amount = amount
	o.To = to
	return o, nil
}

// BurnData is the payload of a Burn transaction: amount removed from
// circulation.
type BurnData struct {
	Amount uint64
}

// SmartContractData is the payload of a SmartContract transaction. The core
// does not execute contracts (Non-goal); it only carries and hashes the
// invocation.
type SmartContractData struct {
	Contract string
	Amount   uint64
	Params   map[string]string
}

// CoinbaseData is the payload of the single coinbase transaction a block may
// carry; its amount must equal the computed block reward.
type CoinbaseData struct {
	Amount uint64
}

// UploadSmartContractData is the payload of a contract-code upload
// transaction. The core does not interpret the code (Non-goal).
type UploadSmartContractData struct {
	Code string
}

// TransactionData is the sum type over a transaction's variant-specific
// payload. Exactly one of the typed fields is meaningful, selected by
// Variant.
type TransactionData struct {
	Variant             TransactionVariant
	Normal              []Output
	Burn                BurnData
	SmartContract       SmartContractData
	Coinbase            CoinbaseData
	UploadSmartContract UploadSmartContractData
}

// writeHashed writes the bytes that participate in the transaction hash,
// matching the variant tag order of the reference implementation's
// Hashable::to_bytes.
func (d *TransactionData) writeHashed(w *serializer.Writer) {
	w.WriteU8(uint8(d.Variant))
	switch d.Variant {
	case VariantBurn:
		w.WriteU64(d.Burn.Amount)
	case VariantNormal:
		w.WriteU32(uint32(len(d.Normal)))
		for _, out := range d.Normal {
			out.write(w)
		}
	case VariantRegistration:
		// no payload
	case VariantSmartContract:
		w.WriteString(d.SmartContract.Contract)
		w.WriteU64(d.SmartContract.Amount)
		w.WriteU32(uint32(len(d.SmartContract.Params)))
		keys := make([]string, 0, len(d.SmartContract.Params))
		for k := range d.SmartContract.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.WriteString(k)
			w.WriteString(d.SmartContract.Params[k])
		}
	case VariantCoinbase:
		w.WriteU64(d.Coinbase.Amount)
	case VariantUploadSmartContract:
		w.WriteString(d.UploadSmartContract.Code)
	}
}

func readTransactionData(r *serializer.Reader) (TransactionData, error) {
	var d TransactionData
	tag, err := r.ReadU8()
	if err != nil {
		return d, err
	}
	d.Variant = TransactionVariant(tag)
	switch d.Variant {
	case VariantBurn:
		amount, err := r.ReadU64()
		if err != nil {
			return d, err
		}
		d.Burn = BurnData{Amount: amount}
	case VariantNormal:
		n, err := r.ReadU32()
		if err != nil {
			return d, err
		}
		outs := make([]Output, 0, n)
		for i := uint32(0); i < n; i++ {
			out, err := readOutput(r)
			if err != nil {
				return d, err
			}
			outs = append(outs, out)
		}
		d.Normal = outs
	case VariantRegistration:
		// no payload
	case VariantSmartContract:
		contract, err := r.ReadString()
		if err != nil {
			return d, err
		}
		amount, err := r.ReadU64()
		if err != nil {
			return d, err
		}
		n, err := r.ReadU32()
		if err != nil {
			return d, err
		}
		params := make(map[string]string, n)
		for i := uint32(0); i < n; i++ {
			k, err := r.ReadString()
			if err != nil {
				return d, err
			}
			v, err := r.ReadString()
			if err != nil {
				return d, err
			}
			params[k] = v
		}
		d.SmartContract = SmartContractData{Contract: contract, Amount: amount, Params: params}
	case VariantCoinbase:
		amount, err := r.ReadU64()
		if err != nil {
			return d, err
		}
		d.Coinbase = CoinbaseData{Amount: amount}
	case VariantUploadSmartContract:
		code, err := r.ReadString()
		if err != nil {
			return d, err
		}
		d.UploadSmartContract = UploadSmartContractData{Code: code}
	default:
		return d, errcode.New(errcode.InvalidTag, "unknown transaction variant %d", tag)
	}
	return d, nil
}

// Transaction is a single state-transition request: a debit from Sender's
// nonce sequence, tagged with a variant-specific effect.
type Transaction struct {
	Nonce     uint64
	Data      TransactionData
	Sender    crypto.PublicKey
	Fee       uint64
	Signature *crypto.Signature
}

// IsCoinbase reports whether tx is a miner reward transaction.
func (tx *Transaction) IsCoinbase() bool {
	return tx.Data.Variant == VariantCoinbase
}

// IsRegistration reports whether tx is an account registration.
func (tx *Transaction) IsRegistration() bool {
	return tx.Data.Variant == VariantRegistration
}

// hashedBytes serializes exactly the fields the hash and signature cover:
// nonce, data, sender, fee. The signature itself is deliberately excluded,
// matching the reference implementation's to_bytes — preserved exactly for
// wire compatibility, not a bug to fix.
func (tx *Transaction) hashedBytes() []byte {
	w := serializer.NewWriter()
	w.WriteU64(tx.Nonce)
	tx.Data.writeHashed(w)
	w.WriteSerializer(tx.Sender)
	w.WriteU64(tx.Fee)
	return w.Bytes()
}

// Hash computes the transaction's canonical id.
func (tx *Transaction) Hash() crypto.Hash {
	return crypto.HashBytes(tx.hashedBytes())
}

// Sign signs tx with pair and stores the resulting signature.
func (tx *Transaction) Sign(pair *crypto.KeyPair) {
	hash := tx.Hash()
	sig := pair.Sign(hash[:])
	tx.Signature = &sig
}

// VerifySignature reports whether tx carries a valid signature over its
// hash. Registration and Coinbase transactions are exempt (Registration
// authenticates via mini-PoW; Coinbase is minted by the block producer and
// authenticated by block validity instead).
func (tx *Transaction) VerifySignature() bool {
	if tx.Data.Variant == VariantRegistration || tx.Data.Variant == VariantCoinbase {
		return true
	}
	if tx.Signature == nil {
		return false
	}
	hash := tx.Hash()
	return crypto.VerifySignature(tx.Sender, hash, *tx.Signature)
}

// Size returns the transaction's serialized size in bytes, including the
// signature-presence flag and the signature when present.
func (tx *Transaction) Size() int {
	size := len(tx.hashedBytes()) + 1
	if tx.Signature != nil {
		size += crypto.SignatureSize
	}
	return size
}

// Write implements serializer.Serializer over the full wire encoding,
// including the optional signature.
func (tx *Transaction) Write(w *serializer.Writer) {
	w.WriteU64(tx.Nonce)
	tx.Data.writeHashed(w)
	w.WriteSerializer(tx.Sender)
	w.WriteU64(tx.Fee)
	w.WriteBool(tx.Signature != nil)
	if tx.Signature != nil {
		w.WriteSerializer(*tx.Signature)
	}
}

// ReadTransaction decodes a Transaction from its full wire encoding.
func ReadTransaction(r *serializer.Reader) (*Transaction, error) {
	tx := &Transaction{}
	nonce, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	data, err := readTransactionData(r)
	if err != nil {
		return nil, err
	}
	sender, err := crypto.ReadPublicKey(r)
	if err != nil {
		return nil, err
	}
	fee, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	hasSig, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	tx.Nonce = nonce
	tx.Data = data
	tx.Sender = sender
	tx.Fee = fee
	if hasSig {
		sig, err := crypto.ReadSignature(r)
		if err != nil {
			return nil, err
		}
		tx.Signature = &sig
	}
	return tx, nil
}

// NewRegistration builds an unsigned registration transaction and mines its
// mini-PoW nonce so its hash satisfies difficulty (spec.md section 4.5,
// REGISTRATION_DIFFICULTY).
func NewRegistration(sender crypto.PublicKey, satisfies func(crypto.Hash) bool) (*Transaction, error) {
	tx := &Transaction{
		Nonce:  0,
		Data:   TransactionData{Variant: VariantRegistration},
		Sender: sender,
		Fee:    0,
	}
	const maxAttempts = 1 << 32
	for i := uint64(0); i < maxAttempts; i++ {
		tx.Nonce = i
		if satisfies(tx.Hash()) {
			return tx, nil
		}
	}
	return nil, errors.New("registration mini-proof-of-work exhausted nonce space")
}
