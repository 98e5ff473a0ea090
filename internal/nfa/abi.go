package nfa

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const identityRegistryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "agentWallet", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "tokenURI", "type": "string"}
    ],
    "name": "NFAMinted",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "uint8", "name": "newLevel", "type": "uint8"}
    ],
    "name": "AgentLevelUp",
    "type": "event"
  }
]`

const trainerNFAABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "erc8004AgentId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "NFAActivated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "uint8", "name": "newStatus", "type": "uint8"}
    ],
    "name": "StatusChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "newRoot", "type": "bytes32"}
    ],
    "name": "LearningUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "interactionType", "type": "string"},
      {"indexed": false, "internalType": "bool", "name": "success", "type": "bool"}
    ],
    "name": "InteractionRecorded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "AgentFunded",
    "type": "event"
  }
]`

const reputationRegistryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "agentId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "client", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "feedbackIndex", "type": "uint256"},
      {"indexed": false, "internalType": "int128", "name": "value", "type": "int128"},
      {"indexed": false, "internalType": "uint8", "name": "valueDecimals", "type": "uint8"},
      {"indexed": false, "internalType": "bytes32", "name": "tag1", "type": "bytes32"},
      {"indexed": false, "internalType": "bytes32", "name": "tag2", "type": "bytes32"}
    ],
    "name": "NewFeedback",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "agentId", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "feedbackIndex", "type": "uint256"}
    ],
    "name": "FeedbackRevoked",
    "type": "event"
  }
]`

var (
	identityABI     abi.ABI
	identityABIOnce sync.Once
	identityABIErr  error

	trainerABI     abi.ABI
	trainerABIOnce sync.Once
	trainerABIErr  error

	reputationABI     abi.ABI
	reputationABIOnce sync.Once
	reputationABIErr  error
)

// IdentityRegistryABI returns the parsed identity-registry ABI.
func IdentityRegistryABI() (abi.ABI, error) {
	identityABIOnce.Do(func() {
		identityABI, identityABIErr = abi.JSON(strings.NewReader(identityRegistryABIJSON))
	})
	return identityABI, identityABIErr
}

// TrainerNFAABI returns the parsed BAP-578 trainer NFA ABI.
func TrainerNFAABI() (abi.ABI, error) {
	trainerABIOnce.Do(func() {
		trainerABI, trainerABIErr = abi.JSON(strings.NewReader(trainerNFAABIJSON))
	})
	return trainerABI, trainerABIErr
}

// ReputationRegistryABI returns the parsed ERC-8004 reputation registry ABI.
func ReputationRegistryABI() (abi.ABI, error) {
	reputationABIOnce.Do(func() {
		reputationABI, reputationABIErr = abi.JSON(strings.NewReader(reputationRegistryABIJSON))
	})
	return reputationABI, reputationABIErr
}
