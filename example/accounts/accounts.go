// Package accounts is a sample account service for breezy: genesis
// accounts, account creation, transfers, sender authentication for
// admission checks and an account query.
//
// Accounts are stored under "accounts/basic/<address>" as canonical
// CBOR records.
package accounts

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/codec"
	"github.com/blockberries/breezy/engine"
	"github.com/blockberries/breezy/envelope"
	"github.com/blockberries/breezy/types"
)

// Route, types and query path served by the account service.
const (
	Route        = "account"
	TypeCreate   = "create"
	TypeTransfer = "transfer"
	QueryAccount = "accountview"
)

// InitialBalance is credited to every new account.
const InitialBalance uint64 = 10000

const keyPrefix = "accounts/basic/"

// ErrBadSignature is returned by Authenticate when the envelope
// signature does not match the sender's registered key.
var ErrBadSignature = errors.New("bad signature")

// Account is the stored account record.
type Account struct {
	Address   string `cbor:"address"`
	PublicKey string `cbor:"publicKey"`
	Name      string `cbor:"name"`
	Balance   uint64 `cbor:"balance"`
}

// CreateMsg is the payload of an account/create envelope.
type CreateMsg struct {
	Address string `cbor:"address"`
	PubKey  string `cbor:"pubkey"`
	Name    string `cbor:"name,omitempty"`
}

// TransferMsg is the payload of an account/transfer envelope.
type TransferMsg struct {
	To     string `cbor:"to"`
	Amount uint64 `cbor:"amount"`
}

// GenesisState is the CBOR document accepted in InitChain app state.
type GenesisState struct {
	Accounts []Account `cbor:"accounts"`
}

// Key returns the store key of the account at address.
func Key(address string) []byte {
	return []byte(keyPrefix + address)
}

// FromKey builds a genesis account for kp.
func FromKey(kp envelope.KeyPair, name string) Account {
	return Account{Address: kp.Address, PublicKey: kp.PublicKeyHex(), Name: name}
}

// Register installs the account service on reg. The genesis handler
// creates every account in genesis plus any listed in the InitChain
// app state.
func Register(reg *engine.Registry, genesis ...Account) {
	reg.OnInitChain(func(_ context.Context, gc *engine.GenesisContext) error {
		accts := append([]Account(nil), genesis...)
		if raw := gc.AppState(); len(raw) > 0 {
			var gs GenesisState
			if err := codec.Unmarshal(raw, &gs); err != nil {
				return fmt.Errorf("%w: genesis app state: %v", breezy.ErrDecode, err)
			}
			accts = append(accts, gs.Accounts...)
		}
		for _, a := range accts {
			if err := CreateGenesisAccount(gc, a); err != nil {
				return err
			}
		}
		return nil
	})
	reg.OnVerifyTx(Authenticate)
	reg.OnTx(Route, TxHandler().Serve)
	reg.OnQuery(QueryAccount, AccountQuery)
}

// TxHandler returns the account route dispatcher.
func TxHandler() *engine.TypeMux {
	return engine.NewTypeMux().
		Handle(TypeCreate, create).
		Handle(TypeTransfer, transfer)
}

// CreateGenesisAccount stores acct with the initial balance.
func CreateGenesisAccount(w engine.Writer, acct Account) error {
	if acct.Address == "" {
		return fmt.Errorf("%w: missing account address", breezy.ErrMalformedEnvelope)
	}
	if acct.PublicKey == "" {
		return fmt.Errorf("%w: missing account public key", breezy.ErrMalformedEnvelope)
	}
	acct.Balance = InitialBalance
	return w.SetValue(Key(acct.Address), acct)
}

// Get loads the account at address.
func Get(r engine.Reader, address string) (Account, error) {
	var a Account
	ok, err := r.GetValue(Key(address), &a)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, fmt.Errorf("%w: account %s not found", breezy.ErrInsufficientState, address)
	}
	return a, nil
}

// TransferFunds moves amount from one account to another.
func TransferFunds(w engine.Writer, from, to string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	if from == to {
		return fmt.Errorf("cannot transfer to self")
	}
	payer, err := Get(w, from)
	if err != nil {
		return err
	}
	payee, err := Get(w, to)
	if err != nil {
		return err
	}
	if payer.Balance < amount {
		return fmt.Errorf("%w: balance %d below %d", breezy.ErrInsufficientState, payer.Balance, amount)
	}
	payer.Balance -= amount
	payee.Balance += amount
	if err := w.SetValue(Key(payer.Address), payer); err != nil {
		return err
	}
	return w.SetValue(Key(payee.Address), payee)
}

// Authenticate is an admission handler that requires the sender to
// have an account and the envelope to be signed by its key.
func Authenticate(_ context.Context, tc *engine.TxContext) (types.TxResult, error) {
	sender, err := senderAccount(tc)
	if err != nil {
		return types.TxResult{}, err
	}
	if !tc.Envelope().VerifyHex(sender.PublicKey) {
		return types.TxResult{}, ErrBadSignature
	}
	return types.TxResult{Code: types.CodeOK, Log: "ok"}, nil
}

// AccountQuery returns the account whose address is the query key.
func AccountQuery(_ context.Context, qc *engine.QueryContext, key any) (any, error) {
	address, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("account key must be an address string, got %T", key)
	}
	a, err := Get(qc, address)
	if errors.Is(err, breezy.ErrInsufficientState) {
		return nil, breezy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// create registers an account on behalf of an existing sender.
func create(_ context.Context, tc *engine.TxContext) (types.TxResult, error) {
	if _, err := senderAccount(tc); err != nil {
		return types.TxResult{}, err
	}
	var msg CreateMsg
	if err := tc.Envelope().Bind(&msg); err != nil {
		return types.TxResult{}, err
	}
	if msg.Address == "" {
		return types.TxResult{}, fmt.Errorf("%w: create: missing account address", breezy.ErrMalformedEnvelope)
	}
	pub, err := hex.DecodeString(msg.PubKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return types.TxResult{}, fmt.Errorf("%w: create: bad public key", breezy.ErrMalformedEnvelope)
	}
	if _, err := Get(tc, msg.Address); err == nil {
		return types.TxResult{}, fmt.Errorf("account %s already exists", msg.Address)
	}

	acct := Account{
		Address:   msg.Address,
		PublicKey: msg.PubKey,
		Name:      msg.Name,
		Balance:   InitialBalance,
	}
	if err := tc.SetValue(Key(acct.Address), acct); err != nil {
		return types.TxResult{}, err
	}
	tc.Emit(types.NewEvent("account_created", "address", acct.Address, "by", tc.Envelope().Sender))
	return types.TxResult{Code: types.CodeOK}, nil
}

func transfer(_ context.Context, tc *engine.TxContext) (types.TxResult, error) {
	var msg TransferMsg
	if err := tc.Envelope().Bind(&msg); err != nil {
		return types.TxResult{}, err
	}
	from := tc.Envelope().Sender
	if err := TransferFunds(tc, from, msg.To, msg.Amount); err != nil {
		return types.TxResult{}, err
	}
	tc.Emit(types.NewEvent("transfer",
		"from", from,
		"to", msg.To,
		"amount", fmt.Sprint(msg.Amount),
	))
	return types.TxResult{Code: types.CodeOK}, nil
}

func senderAccount(tc *engine.TxContext) (Account, error) {
	sender := tc.Envelope().Sender
	if sender == "" {
		return Account{}, fmt.Errorf("%w: missing sender address", breezy.ErrMalformedEnvelope)
	}
	a, err := Get(tc, sender)
	if err != nil {
		return Account{}, fmt.Errorf("sender: %w", err)
	}
	return a, nil
}
