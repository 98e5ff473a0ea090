package nfa

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"agentScope/internal/model"
)

const (
	defaultLevel   = 1
	defaultStage   = "Rookie"
	defaultVersion = "1.0.0"
)

var statusNames = map[uint8]string{
	0: "Active",
	1: "Paused",
	2: "Terminated",
}

// Decoder turns raw logs into typed domain events. Every Decode method is
// total: a log that does not match the expected shape yields ok=false and is
// skipped by the caller instead of failing the batch.
type Decoder struct {
	identity   abi.ABI
	trainer    abi.ABI
	reputation abi.ABI
}

// NewDecoder parses the registry ABIs.
func NewDecoder() (*Decoder, error) {
	identity, err := IdentityRegistryABI()
	if err != nil {
		return nil, err
	}
	trainer, err := TrainerNFAABI()
	if err != nil {
		return nil, err
	}
	reputation, err := ReputationRegistryABI()
	if err != nil {
		return nil, err
	}
	return &Decoder{identity: identity, trainer: trainer, reputation: reputation}, nil
}

// Topics holds the topic0 hash for each indexed event kind.
type Topics struct {
	Minted              common.Hash
	LevelUp             common.Hash
	Activated           common.Hash
	StatusChanged       common.Hash
	LearningUpdated     common.Hash
	InteractionRecorded common.Hash
	AgentFunded         common.Hash
	NewFeedback         common.Hash
	FeedbackRevoked     common.Hash
}

// Topics returns the topic0 hashes used when filtering logs.
func (d *Decoder) Topics() Topics {
	return Topics{
		Minted:              d.identity.Events["NFAMinted"].ID,
		LevelUp:             d.identity.Events["AgentLevelUp"].ID,
		Activated:           d.trainer.Events["NFAActivated"].ID,
		StatusChanged:       d.trainer.Events["StatusChanged"].ID,
		LearningUpdated:     d.trainer.Events["LearningUpdated"].ID,
		InteractionRecorded: d.trainer.Events["InteractionRecorded"].ID,
		AgentFunded:         d.trainer.Events["AgentFunded"].ID,
		NewFeedback:         d.reputation.Events["NewFeedback"].ID,
		FeedbackRevoked:     d.reputation.Events["FeedbackRevoked"].ID,
	}
}

// DecodeMint decodes an NFAMinted log. A malformed tokenURI document never
// drops the mint: the event is produced with a synthetic name and default
// level, stage, and version instead.
func (d *Decoder) DecodeMint(log types.Log) (model.AgentMinted, bool) {
	ev := d.identity.Events["NFAMinted"]
	if len(log.Topics) != 4 || log.Topics[0] != ev.ID {
		return model.AgentMinted{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 1 {
		return model.AgentMinted{}, false
	}
	tokenURI, ok := values[0].(string)
	if !ok || tokenURI == "" {
		return model.AgentMinted{}, false
	}

	tokenID := tokenIDFromTopic(log.Topics[1])
	out := model.AgentMinted{
		TokenID:     tokenID,
		Owner:       addrFromTopic(log.Topics[2]),
		AgentWallet: addrFromTopic(log.Topics[3]),
		TokenURI:    tokenURI,
		Name:        "Agent-" + tokenID,
		Level:       defaultLevel,
		Stage:       defaultStage,
		Version:     defaultVersion,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}

	if meta, ok := DecodeTokenURI(tokenURI); ok {
		out.Name = meta.DisplayName()
		out.Level = meta.IntAttr("Level", defaultLevel)
		out.Stage = meta.StringAttr("Stage", defaultStage)
		out.Capabilities = meta.StringAttr("Capabilities", "")
		out.Version = meta.StringAttr("Version", defaultVersion)
		out.Description = meta.Description
	}

	return out, true
}

// DecodeLevelUp decodes an AgentLevelUp log.
func (d *Decoder) DecodeLevelUp(log types.Log) (model.AgentLeveledUp, bool) {
	ev := d.identity.Events["AgentLevelUp"]
	if len(log.Topics) != 2 || log.Topics[0] != ev.ID {
		return model.AgentLeveledUp{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 1 {
		return model.AgentLeveledUp{}, false
	}
	level, ok := values[0].(uint8)
	if !ok {
		return model.AgentLeveledUp{}, false
	}

	return model.AgentLeveledUp{
		TokenID:     tokenIDFromTopic(log.Topics[1]),
		NewLevel:    int(level),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}, true
}

// DecodeActivation decodes an NFAActivated log.
func (d *Decoder) DecodeActivation(log types.Log) (model.NFAActivated, bool) {
	ev := d.trainer.Events["NFAActivated"]
	if len(log.Topics) != 4 || log.Topics[0] != ev.ID {
		return model.NFAActivated{}, false
	}

	return model.NFAActivated{
		TokenID:        tokenIDFromTopic(log.Topics[1]),
		ERC8004AgentID: tokenIDFromTopic(log.Topics[2]),
		Owner:          addrFromTopic(log.Topics[3]),
		BlockNumber:    log.BlockNumber,
		TxHash:         log.TxHash.Hex(),
	}, true
}

// DecodeStatusChange decodes a StatusChanged log. Unknown status codes map
// to Active.
func (d *Decoder) DecodeStatusChange(log types.Log) (model.StatusChanged, bool) {
	ev := d.trainer.Events["StatusChanged"]
	if len(log.Topics) != 2 || log.Topics[0] != ev.ID {
		return model.StatusChanged{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 1 {
		return model.StatusChanged{}, false
	}
	code, ok := values[0].(uint8)
	if !ok {
		return model.StatusChanged{}, false
	}

	status, ok := statusNames[code]
	if !ok {
		status = "Active"
	}

	return model.StatusChanged{
		TokenID:     tokenIDFromTopic(log.Topics[1]),
		Status:      status,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}, true
}

// DecodeLearningUpdate decodes a LearningUpdated log.
func (d *Decoder) DecodeLearningUpdate(log types.Log) (model.LearningUpdated, bool) {
	ev := d.trainer.Events["LearningUpdated"]
	if len(log.Topics) != 2 || log.Topics[0] != ev.ID {
		return model.LearningUpdated{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 1 {
		return model.LearningUpdated{}, false
	}
	root, ok := values[0].([32]byte)
	if !ok {
		return model.LearningUpdated{}, false
	}

	return model.LearningUpdated{
		TokenID:     tokenIDFromTopic(log.Topics[1]),
		NewRoot:     common.Hash(root).Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}, true
}

// DecodeInteraction decodes an InteractionRecorded log.
func (d *Decoder) DecodeInteraction(log types.Log) (model.InteractionRecorded, bool) {
	ev := d.trainer.Events["InteractionRecorded"]
	if len(log.Topics) != 2 || log.Topics[0] != ev.ID {
		return model.InteractionRecorded{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 2 {
		return model.InteractionRecorded{}, false
	}
	kind, ok := values[0].(string)
	if !ok {
		return model.InteractionRecorded{}, false
	}
	success, ok := values[1].(bool)
	if !ok {
		return model.InteractionRecorded{}, false
	}

	return model.InteractionRecorded{
		TokenID:         tokenIDFromTopic(log.Topics[1]),
		InteractionType: kind,
		Success:         success,
		BlockNumber:     log.BlockNumber,
		TxHash:          log.TxHash.Hex(),
	}, true
}

// DecodeFunding decodes an AgentFunded log.
func (d *Decoder) DecodeFunding(log types.Log) (model.AgentFunded, bool) {
	ev := d.trainer.Events["AgentFunded"]
	if len(log.Topics) != 2 || log.Topics[0] != ev.ID {
		return model.AgentFunded{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 1 {
		return model.AgentFunded{}, false
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return model.AgentFunded{}, false
	}

	return model.AgentFunded{
		TokenID:     tokenIDFromTopic(log.Topics[1]),
		Amount:      amount.String(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}, true
}

// DecodeFeedback decodes a NewFeedback log.
func (d *Decoder) DecodeFeedback(log types.Log) (model.FeedbackGiven, bool) {
	ev := d.reputation.Events["NewFeedback"]
	if len(log.Topics) != 3 || log.Topics[0] != ev.ID {
		return model.FeedbackGiven{}, false
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) != 5 {
		return model.FeedbackGiven{}, false
	}
	index, ok := values[0].(*big.Int)
	if !ok || !index.IsUint64() {
		return model.FeedbackGiven{}, false
	}
	value, ok := values[1].(*big.Int)
	if !ok {
		return model.FeedbackGiven{}, false
	}
	decimals, ok := values[2].(uint8)
	if !ok {
		return model.FeedbackGiven{}, false
	}
	tag1, ok := values[3].([32]byte)
	if !ok {
		return model.FeedbackGiven{}, false
	}
	tag2, ok := values[4].([32]byte)
	if !ok {
		return model.FeedbackGiven{}, false
	}

	return model.FeedbackGiven{
		AgentID:       tokenIDFromTopic(log.Topics[1]),
		Client:        addrFromTopic(log.Topics[2]),
		FeedbackIndex: index.Uint64(),
		Value:         value.String(),
		ValueDecimals: decimals,
		Tag1:          tagHex(tag1),
		Tag2:          tagHex(tag2),
		BlockNumber:   log.BlockNumber,
		TxHash:        log.TxHash.Hex(),
	}, true
}

// DecodeFeedbackRevocation decodes a FeedbackRevoked log.
func (d *Decoder) DecodeFeedbackRevocation(log types.Log) (model.FeedbackRevoked, bool) {
	ev := d.reputation.Events["FeedbackRevoked"]
	if len(log.Topics) != 3 || log.Topics[0] != ev.ID {
		return model.FeedbackRevoked{}, false
	}

	index := new(big.Int).SetBytes(log.Topics[2].Bytes())
	if !index.IsUint64() {
		return model.FeedbackRevoked{}, false
	}

	return model.FeedbackRevoked{
		AgentID:       tokenIDFromTopic(log.Topics[1]),
		FeedbackIndex: index.Uint64(),
		BlockNumber:   log.BlockNumber,
		TxHash:        log.TxHash.Hex(),
	}, true
}

func tokenIDFromTopic(topic common.Hash) string {
	return new(big.Int).SetBytes(topic.Bytes()).String()
}

func addrFromTopic(topic common.Hash) string {
	return strings.ToLower(common.BytesToAddress(topic.Bytes()).Hex())
}

func tagHex(tag [32]byte) string {
	if tag == ([32]byte{}) {
		return ""
	}
	return common.Hash(tag).Hex()
}
