package domain

// WalletInfo is a snapshot of the mock wallet widget.
type WalletInfo struct {
	Connected    bool     `json:"connected"`
	Address      string   `json:"address,omitempty"`
	ShortAddress string   `json:"short_address,omitempty"`
	Network      string   `json:"network"`
	Balances     Balances `json:"balances"`
}
