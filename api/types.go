package api

import (
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// Item is the wire form of interfaces.Item. Payload is base64 encoded by encoding/json.
type Item struct {
	// ID is generated by the server when empty.
	ID         string            `json:"id,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Payload    []byte            `json:"payload"`
}

// ToItem converts the wire item into an interfaces.Item.
func (i Item) ToItem() interfaces.Item {
	return interfaces.Item{
		ID:         i.ID,
		Attributes: interfaces.NewAttributes(i.Attributes),
		Payload:    i.Payload,
	}
}

// ItemFrom converts an interfaces.Item into its wire form.
func ItemFrom(item interfaces.Item) Item {
	return Item{
		ID:         item.ID,
		Attributes: item.Attributes.Map(),
		Payload:    item.Payload,
	}
}

// ConvertRequest is the body of the encrypt and decrypt endpoints.
type ConvertRequest struct {
	Items []Item `json:"items"`
}

// Outcome is the routing decision for one submitted item.
type Outcome struct {
	Item
	Route string `json:"route"`
	Error string `json:"error,omitempty"`
}

// OutcomeFrom converts an interfaces.Outcome into its wire form.
func OutcomeFrom(outcome interfaces.Outcome) Outcome {
	o := Outcome{
		Item:  ItemFrom(outcome.Item),
		Route: outcome.Route.String(),
	}
	if outcome.Err != nil {
		o.Error = outcome.Err.Error()
	}
	return o
}

// ConvertResponse lists the outcomes in request order.
type ConvertResponse struct {
	Outcomes []Outcome `json:"outcomes"`
}

// PlatformSettings is the body of the platform reconfiguration endpoint.
type PlatformSettings struct {
	Endpoint      string `json:"endpoint"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
	UsePlaintext  bool   `json:"use_plaintext"`
	TrustStoreRef string `json:"trust_store_ref,omitempty"`
}

// ToSettings converts the wire settings into interfaces.PlatformSettings.
func (p PlatformSettings) ToSettings() interfaces.PlatformSettings {
	return interfaces.PlatformSettings{
		Endpoint:      p.Endpoint,
		ClientID:      p.ClientID,
		ClientSecret:  p.ClientSecret,
		UsePlaintext:  p.UsePlaintext,
		TrustStoreRef: p.TrustStoreRef,
	}
}

// PlatformResponse reports the outcome of a reconfiguration.
type PlatformResponse struct {
	// Changed is true when the settings differed and the shared client was dropped.
	Changed    bool   `json:"changed"`
	Generation uint64 `json:"generation"`
}
