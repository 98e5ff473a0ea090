package nfa

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

const dataURIPrefix = "data:application/json;base64,"

const namePrefix = "NFA: "

// Metadata is the self-describing document embedded in a tokenURI.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
}

// Attribute is one trait pair. Value is a string or a number in the wild.
type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// DecodeTokenURI decodes a base64 data-URI metadata document. The second
// return value is false for anything that is not a parseable document; the
// caller substitutes defaults instead of dropping the event.
func DecodeTokenURI(uri string) (Metadata, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataURIPrefix))
	if err != nil {
		return Metadata{}, false
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, false
	}
	return m, true
}

// DisplayName strips the on-chain name prefix.
func (m Metadata) DisplayName() string {
	return strings.TrimPrefix(m.Name, namePrefix)
}

// StringAttr returns the first attribute matching trait, or def.
func (m Metadata) StringAttr(trait, def string) string {
	for _, a := range m.Attributes {
		if a.TraitType != trait {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return def
	}
	return def
}

// IntAttr returns the first attribute matching trait as an int, or def.
func (m Metadata) IntAttr(trait string, def int) int {
	for _, a := range m.Attributes {
		if a.TraitType != trait {
			continue
		}
		switch v := a.Value.(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
		return def
	}
	return def
}
