package domain

import (
	"github.com/shopspring/decimal"
)

// Transaction is one wallet transaction as returned by the block explorer.
// Field values are kept verbatim (the explorer encodes numbers as strings).
type Transaction struct {
	Hash              string `json:"hash"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	TimeStamp         string `json:"timeStamp"`
	BlockNumber       string `json:"blockNumber,omitempty"`
	BlockHash         string `json:"blockHash,omitempty"`
	Nonce             string `json:"nonce,omitempty"`
	TransactionIndex  string `json:"transactionIndex,omitempty"`
	Gas               string `json:"gas,omitempty"`
	GasPrice          string `json:"gasPrice,omitempty"`
	GasUsed           string `json:"gasUsed,omitempty"`
	CumulativeGasUsed string `json:"cumulativeGasUsed,omitempty"`
	Input             string `json:"input,omitempty"`
	ContractAddress   string `json:"contractAddress,omitempty"`
	IsError           string `json:"isError,omitempty"`
	TxReceiptStatus   string `json:"txreceipt_status,omitempty"`
	Confirmations     string `json:"confirmations,omitempty"`
	MethodId          string `json:"methodId,omitempty"`
	FunctionName      string `json:"functionName,omitempty"`
}

// StoredTransaction is a transaction together with its store-assigned id.
type StoredTransaction struct {
	Id string `json:"id"`
	Transaction
}

var weiPerEth = decimal.New(1, 18)

// TotalEthSent sums the wei values of all given transactions and converts
// the total to ETH, rounded to 4 decimal places. Values that do not parse
// are skipped.
func TotalEthSent(transactions []Transaction) float64 {
	total := decimal.Zero
	for _, transaction := range transactions {
		value, err := decimal.NewFromString(transaction.Value)
		if err != nil {
			continue
		}
		total = total.Add(value)
	}
	return total.Div(weiPerEth).Round(4).InexactFloat64()
}
