package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// Address identifies a party on the ledger (owner, renter, buyer, admin).
// Identity is authenticated at the API boundary; the ledger treats it as opaque.
type Address string

// Valid reports whether the address is usable as a ledger party.
func (a Address) Valid() bool {
	return a != ""
}

// ResponseFormat selects how an agent formats its responses.
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = "text"
	ResponseFormatJSON ResponseFormat = "json"
)

// ParamScale is the fixed-point scale for generation parameters.
// A value of 0.7 is stored as 700.
const ParamScale = 1000

// AgentMetadata is the descriptive and pricing record of an agent.
// It is replaced wholesale by updates, never patched.
type AgentMetadata struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Model             string `json:"model"`
	UsageCost         uint64 `json:"usage_cost"`           // price per metered use, smallest currency unit
	MaxUsagesPerDay   uint64 `json:"max_usages_per_day"`   // 0 means uncapped
	Rentable          bool   `json:"rentable"`
	RentalPricePerUse uint64 `json:"rental_price_per_use"` // smallest currency unit
	ExternalURI       string `json:"external_uri"`         // opaque pointer to off-chain configuration
}

// Validate checks that the metadata is well-formed for minting or update.
func (m AgentMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if m.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidArgument)
	}
	return nil
}

// ToolConfig describes an agent's enabled capabilities and generation
// parameters. The four numeric parameters are fixed-point integers scaled by
// ParamScale to keep the ledger free of floating point.
type ToolConfig struct {
	WebSearch           bool           `json:"web_search"`
	CodeExecution       bool           `json:"code_execution"`
	BrowserAutomation   bool           `json:"browser_automation"`
	ExternalComputation bool           `json:"external_computation"`
	Streaming           bool           `json:"streaming"`
	ResponseFormat      ResponseFormat `json:"response_format"`
	Temperature         int64          `json:"temperature"`
	TopP                int64          `json:"top_p"`
	FrequencyPenalty    int64          `json:"frequency_penalty"`
	PresencePenalty     int64          `json:"presence_penalty"`
}

// Validate checks that the tool config is well-formed.
func (c ToolConfig) Validate() error {
	switch c.ResponseFormat {
	case ResponseFormatText, ResponseFormatJSON:
	default:
		return fmt.Errorf("%w: unknown response format %q", ErrInvalidArgument, c.ResponseFormat)
	}
	if c.Temperature < 0 || c.TopP < 0 {
		return fmt.Errorf("%w: generation parameters must be non-negative", ErrInvalidArgument)
	}
	return nil
}

// Hash returns the hex-encoded SHA-256 of the JCS-canonicalized config.
// Two configs with the same content always hash identically, regardless of
// field ordering in their JSON encodings.
func (c ToolConfig) Hash() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool config: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize tool config: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Agent is the immutable identity of a minted agent plus its current
// descriptive record. IDs are assigned sequentially at mint and never reused.
type Agent struct {
	ID         uint64        `json:"id"`
	Metadata   AgentMetadata `json:"metadata"`
	Creator    Address       `json:"creator"`
	CreatedAt  time.Time     `json:"created_at"`
	ConfigHash string        `json:"config_hash"`
}

// ConsumeMode selects how a use is settled.
type ConsumeMode string

const (
	// ConsumeModePayPerUse settles the inference fee with the payment
	// attached to the call.
	ConsumeModePayPerUse ConsumeMode = "pay_per_use"
	// ConsumeModePrepaid settles the inference fee against the caller's
	// prepaid balance.
	ConsumeModePrepaid ConsumeMode = "prepaid"
)

// Valid reports whether the mode is one of the supported settlement modes.
func (m ConsumeMode) Valid() bool {
	return m == ConsumeModePayPerUse || m == ConsumeModePrepaid
}

// Listing is a standing offer by the current owner to sell an agent.
// Price is always positive while the listing stands.
type Listing struct {
	AgentID uint64 `json:"agent_id"`
	Price   uint64 `json:"price"`
}
