package token

import "context"

// Ledger is the external value-transfer collaborator: an account-based
// fungible-asset ledger with conventional allowance semantics and a fixed
// decimal scale. The settlement engine treats any transfer failure as a fatal
// abort of the whole operation.
type Ledger interface {
	Decimals(ctx context.Context) (int, error)
	BalanceOf(ctx context.Context, account string) (int64, error)
	Allowance(ctx context.Context, owner, spender string) (int64, error)
	TransferFrom(ctx context.Context, owner, recipient string, amount int64) error
	Transfer(ctx context.Context, recipient string, amount int64) error
}
