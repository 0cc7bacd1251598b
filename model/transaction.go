package model

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SignedTransaction is an opaque upstream-defined record. The reassembly
// engine only reads Hash and SignerID out of it; everything else is carried
// through to persistence verbatim via Raw.
type SignedTransaction struct {
	Hash     Hash
	SignerID string
	Raw      jsoniter.RawMessage
}

type signedTxShallow struct {
	Hash     Hash   `json:"hash"`
	SignerID string `json:"signer_id"`
}

func (t *SignedTransaction) UnmarshalJSON(data []byte) error {
	var shallow signedTxShallow
	if err := json.Unmarshal(data, &shallow); err != nil {
		return err
	}
	t.Hash = shallow.Hash
	t.SignerID = shallow.SignerID
	t.Raw = append(jsoniter.RawMessage(nil), data...)
	return nil
}

func (t SignedTransaction) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	return json.Marshal(signedTxShallow{Hash: t.Hash, SignerID: t.SignerID})
}

// OutcomeMetadata carries the gas-profile sub-field that gets stripped on
// ingress; kept as raw JSON since the engine never inspects its contents.
type OutcomeMetadata struct {
	Version    int                 `json:"version,omitempty"`
	GasProfile jsoniter.RawMessage `json:"gas_profile,omitempty"`
}

// Outcome is the part of an ExecutionOutcome the engine actually reads:
// the spawned receipt ids and the execution logs.
type Outcome struct {
	Logs       []string            `json:"logs"`
	ReceiptIDs []Hash              `json:"receipt_ids"`
	Status     jsoniter.RawMessage `json:"status,omitempty"`
	Metadata   OutcomeMetadata     `json:"metadata"`
}

// ExecutionOutcome is an opaque upstream-defined record carrying an ordered
// list of spawned receipt ids and execution logs. Proof and the gas-profile
// sub-field are the only two fields ever mutated on ingress (see
// StripExecutionOutcome).
type ExecutionOutcome struct {
	Proof   jsoniter.RawMessage `json:"proof,omitempty"`
	Outcome Outcome             `json:"outcome"`
}

// StripExecutionOutcome clears the proof field and the gas-profile
// sub-field in place, reducing the size of what eventually gets persisted.
// This is the only mutation the engine ever performs on an outcome.
func StripExecutionOutcome(o *ExecutionOutcome) {
	o.Proof = nil
	o.Outcome.Metadata.GasProfile = nil
}
