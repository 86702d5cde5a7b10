// Package wallet implements the mock wallet widget: a fixed address that can
// be connected and disconnected, its balances and network, and copying the
// address through a Clipboard.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/mockexchange/internal/domain"
	"github.com/alanyoungcy/mockexchange/internal/sim"
)

// Defaults shown by a fresh wallet.
const (
	DefaultAddress = "0x742d35Cc6425C0532b32F98fCAfCd34E5a2b8C78"
	DefaultNetwork = "Ethereum Mainnet"
)

// Clipboard receives text the user asked to copy.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Wallet is a mock wallet. Nothing is signed and no chain is contacted.
type Wallet struct {
	mu        sync.RWMutex
	connected bool
	address   common.Address
	network   string
	balances  domain.Balances

	clipboard Clipboard
	logger    *slog.Logger
	feed      sim.Feed[domain.WalletInfo]
}

// New validates address and returns a disconnected Wallet.
func New(address, network string, balances domain.Balances, clipboard Clipboard, logger *slog.Logger) (*Wallet, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("wallet: address %q: %w", address, domain.ErrInvalidAddress)
	}
	if network == "" {
		network = DefaultNetwork
	}
	return &Wallet{
		address:   common.HexToAddress(address),
		network:   network,
		balances:  balances,
		clipboard: clipboard,
		logger:    logger.With(slog.String("component", "wallet")),
	}, nil
}

// ShortAddress renders an address as its first six and last four
// characters, e.g. 0x742d...8C78.
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// Info returns the current widget state. Address fields are empty while
// disconnected.
func (w *Wallet) Info() domain.WalletInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.infoLocked()
}

func (w *Wallet) infoLocked() domain.WalletInfo {
	info := domain.WalletInfo{
		Connected: w.connected,
		Network:   w.network,
		Balances:  w.balances,
	}
	if w.connected {
		info.Address = w.address.Hex()
		info.ShortAddress = ShortAddress(w.address)
	}
	return info
}

// Connect marks the wallet connected.
func (w *Wallet) Connect() domain.WalletInfo {
	return w.setConnected(true)
}

// Disconnect marks the wallet disconnected.
func (w *Wallet) Disconnect() domain.WalletInfo {
	return w.setConnected(false)
}

func (w *Wallet) setConnected(v bool) domain.WalletInfo {
	w.mu.Lock()
	changed := w.connected != v
	w.connected = v
	info := w.infoLocked()
	w.mu.Unlock()

	if changed {
		w.logger.Info("wallet state changed", slog.Bool("connected", v))
		w.feed.Publish(info)
	}
	return info
}

// Subscribe returns a channel receiving the state after every connect or
// disconnect.
func (w *Wallet) Subscribe() (<-chan domain.WalletInfo, func()) {
	return w.feed.Subscribe()
}

// CopyAddress hands the full address to the clipboard. Clipboard failures
// are logged, not returned; the only error is copying while disconnected.
func (w *Wallet) CopyAddress(ctx context.Context) error {
	w.mu.RLock()
	connected := w.connected
	addr := w.address.Hex()
	w.mu.RUnlock()

	if !connected {
		return domain.ErrWalletNotConnected
	}
	if w.clipboard == nil {
		return nil
	}
	if err := w.clipboard.Copy(ctx, addr); err != nil {
		w.logger.WarnContext(ctx, "copy address failed", slog.String("error", err.Error()))
	}
	return nil
}
