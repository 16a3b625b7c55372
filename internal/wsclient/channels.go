package wsclient

import "fmt"

// Channel name builders, per spec.md §4.3.1. Client.Subscribe takes the
// channel name as a plain string and does not check it, so these
// builders are the way to get a well-formed name.

func OrderBookChannel(marketID int64) string      { return fmt.Sprintf("order_book:%d", marketID) }
func MarketStatsChannel(marketID int64) string    { return fmt.Sprintf("market_stats:%d", marketID) }
func BboChannel(marketID int64) string            { return fmt.Sprintf("bbo:%d", marketID) }
func TradeChannel(marketID int64) string          { return fmt.Sprintf("trade:%d", marketID) }
func AccountAllOrdersChannel(accountID int64) string {
	return fmt.Sprintf("account_all_orders:%d", accountID)
}
func AccountMarketOrdersChannel(marketID, accountID int64) string {
	return fmt.Sprintf("account_market_orders:%d:%d", marketID, accountID)
}
func UserStatsChannel(accountID int64) string { return fmt.Sprintf("user_stats:%d", accountID) }
func AccountTxChannel(accountID int64) string { return fmt.Sprintf("account_tx:%d", accountID) }

const (
	TransactionChannel         = "transaction"
	ExecutedTransactionChannel = "executed_transaction"
	HeightChannel              = "height"
)
