package filter

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/near-indexer/txwatch/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const eventJSONPrefix = "EVENT_JSON:"

// potentialAccountArgs and potentialEventArgs are the exact, ordered key
// lists the spec fixes for best-effort account extraction.
var potentialAccountArgs = []string{
	"receiver_id", "account_id", "sender_id", "new_account_id", "predecessor_account_id",
	"contract_id", "owner_id", "token_owner_id", "nft_contract_id", "token_account_id",
	"creator_id", "referral_id", "previous_owner_id", "seller_id", "buyer_id", "user_id",
	"beneficiary_id", "staking_pool_account_id", "owner_account_id", "claimer", "bounty_owner",
}

var potentialEventArgs = []string{
	"account_id", "owner_id", "old_owner_id", "new_owner_id", "payer_id",
	"farmer_id", "validator_id", "liquidation_account_id", "contract_id", "nft_contract_id",
}

// accountIDPattern approximates NEAR's account id grammar: lowercase
// alphanumeric segments of 2-64 total characters, separated by single
// '.', '_' or '-'.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

func isValidAccountID(s string) bool {
	if len(s) < 2 || len(s) > 64 {
		return false
	}
	return accountIDPattern.MatchString(s)
}

type eventJSON struct {
	Version  string            `json:"version"`
	Standard string            `json:"standard"`
	Event    string            `json:"event"`
	Data     []jsoniter.RawMessage `json:"data"`
}

// ExtractAccounts computes the set of accounts referenced by a complete
// transaction: the signer, every action receipt's receiver, any
// FunctionCall argument values at the fixed key list, and any EVENT_JSON
// log's data values at the second fixed key list. Every candidate is
// validated as an account identifier before inclusion; anything else is
// silently skipped, matching the best-effort nature of this extraction.
func ExtractAccounts(tx *model.PendingTransaction) []string {
	seen := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		if !isValidAccountID(s) {
			return
		}
		seen[s] = struct{}{}
	}

	add(tx.Transaction.SignedTx.SignerID)

	for _, r := range tx.Transaction.Receipts {
		addAccountsFromReceipt(add, r.Receipt)
		addAccountsFromLogs(add, r.Outcome.Outcome.Logs)
	}

	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}

func addAccountsFromReceipt(add func(string), r model.Receipt) {
	if r.Action == nil {
		return
	}
	add(r.Action.ReceiverID)
	for _, action := range r.Action.Actions {
		if action.FunctionCall == nil {
			continue
		}
		extractFromArgs(add, action.FunctionCall.Args, potentialAccountArgs)
	}
}

func extractFromArgs(add func(string), args []byte, keys []string) {
	if len(args) == 0 {
		return
	}
	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal(args, &doc); err != nil {
		return
	}
	extractFromDoc(add, doc, keys)
}

func extractFromDoc(add func(string), doc map[string]jsoniter.RawMessage, keys []string) {
	for _, key := range keys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		add(s)
	}
}

func addAccountsFromLogs(add func(string), logs []string) {
	for _, l := range logs {
		if !strings.HasPrefix(l, eventJSONPrefix) {
			continue
		}
		var ev eventJSON
		if err := json.Unmarshal([]byte(l[len(eventJSONPrefix):]), &ev); err != nil {
			continue
		}
		for _, raw := range ev.Data {
			var doc map[string]jsoniter.RawMessage
			if err := json.Unmarshal(raw, &doc); err != nil {
				continue
			}
			extractFromDoc(add, doc, potentialEventArgs)
		}
	}
}
