// Package dto holds the REST wire types and their mappings to the domain.
package dto

import (
	"time"

	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/ledger"
)

// Metadata is the wire form of an agent's descriptive record
type Metadata struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	Model             string `json:"model" binding:"required"`
	UsageCost         uint64 `json:"usage_cost"`
	MaxUsagesPerDay   uint64 `json:"max_usages_per_day"`
	Rentable          bool   `json:"rentable"`
	RentalPricePerUse uint64 `json:"rental_price_per_use"`
	ExternalURI       string `json:"external_uri"`
}

// ToDomain converts the wire form to the domain record
func (m Metadata) ToDomain() domain.AgentMetadata {
	return domain.AgentMetadata{
		Name:              m.Name,
		Description:       m.Description,
		Model:             m.Model,
		UsageCost:         m.UsageCost,
		MaxUsagesPerDay:   m.MaxUsagesPerDay,
		Rentable:          m.Rentable,
		RentalPricePerUse: m.RentalPricePerUse,
		ExternalURI:       m.ExternalURI,
	}
}

// MetadataFromDomain converts the domain record to the wire form
func MetadataFromDomain(m domain.AgentMetadata) Metadata {
	return Metadata{
		Name:              m.Name,
		Description:       m.Description,
		Model:             m.Model,
		UsageCost:         m.UsageCost,
		MaxUsagesPerDay:   m.MaxUsagesPerDay,
		Rentable:          m.Rentable,
		RentalPricePerUse: m.RentalPricePerUse,
		ExternalURI:       m.ExternalURI,
	}
}

// ToolConfig is the wire form of an agent's tool configuration. Generation
// parameters are fixed-point integers scaled by 1000.
type ToolConfig struct {
	WebSearch           bool   `json:"web_search"`
	CodeExecution       bool   `json:"code_execution"`
	BrowserAutomation   bool   `json:"browser_automation"`
	ExternalComputation bool   `json:"external_computation"`
	Streaming           bool   `json:"streaming"`
	ResponseFormat      string `json:"response_format" binding:"required"`
	Temperature         int64  `json:"temperature"`
	TopP                int64  `json:"top_p"`
	FrequencyPenalty    int64  `json:"frequency_penalty"`
	PresencePenalty     int64  `json:"presence_penalty"`
}

// ToDomain converts the wire form to the domain config
func (c ToolConfig) ToDomain() domain.ToolConfig {
	return domain.ToolConfig{
		WebSearch:           c.WebSearch,
		CodeExecution:       c.CodeExecution,
		BrowserAutomation:   c.BrowserAutomation,
		ExternalComputation: c.ExternalComputation,
		Streaming:           c.Streaming,
		ResponseFormat:      domain.ResponseFormat(c.ResponseFormat),
		Temperature:         c.Temperature,
		TopP:                c.TopP,
		FrequencyPenalty:    c.FrequencyPenalty,
		PresencePenalty:     c.PresencePenalty,
	}
}

// ToolConfigFromDomain converts the domain config to the wire form
func ToolConfigFromDomain(c domain.ToolConfig) ToolConfig {
	return ToolConfig{
		WebSearch:           c.WebSearch,
		CodeExecution:       c.CodeExecution,
		BrowserAutomation:   c.BrowserAutomation,
		ExternalComputation: c.ExternalComputation,
		Streaming:           c.Streaming,
		ResponseFormat:      string(c.ResponseFormat),
		Temperature:         c.Temperature,
		TopP:                c.TopP,
		FrequencyPenalty:    c.FrequencyPenalty,
		PresencePenalty:     c.PresencePenalty,
	}
}

// MintRequest is the body of POST /agents
type MintRequest struct {
	Metadata   Metadata   `json:"metadata" binding:"required"`
	ToolConfig ToolConfig `json:"tool_config" binding:"required"`
}

// TransferRequest is the body of POST /agents/:id/transfer
type TransferRequest struct {
	To string `json:"to" binding:"required"`
}

// RentalRequest is the body of POST /agents/:id/rentals
type RentalRequest struct {
	Uses          uint64 `json:"uses" binding:"required"`
	Payment       uint64 `json:"payment"`
	WithInference bool   `json:"with_inference"`
}

// ConsumeRequest is the body of POST /agents/:id/uses
type ConsumeRequest struct {
	Payment uint64 `json:"payment"`
	Mode    string `json:"mode" binding:"required"`
}

// ListingRequest is the body of POST /agents/:id/listing
type ListingRequest struct {
	Price uint64 `json:"price" binding:"required"`
}

// PurchaseRequest is the body of POST /agents/:id/purchase
type PurchaseRequest struct {
	Payment uint64 `json:"payment" binding:"required"`
}

// DepositRequest is the body of POST /accounts/:address/deposits
type DepositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// Agent is the wire form of a full agent record
type Agent struct {
	ID         uint64     `json:"id"`
	Metadata   Metadata   `json:"metadata"`
	ToolConfig ToolConfig `json:"tool_config"`
	Creator    string     `json:"creator"`
	Owner      string     `json:"owner"`
	CreatedAt  time.Time  `json:"created_at"`
	ConfigHash string     `json:"config_hash"`
}

// AgentFromDomain builds the wire form from the domain records
func AgentFromDomain(a domain.Agent, cfg domain.ToolConfig, owner domain.Address) Agent {
	return Agent{
		ID:         a.ID,
		Metadata:   MetadataFromDomain(a.Metadata),
		ToolConfig: ToolConfigFromDomain(cfg),
		Creator:    string(a.Creator),
		Owner:      string(owner),
		CreatedAt:  a.CreatedAt,
		ConfigHash: a.ConfigHash,
	}
}

// AgentList is a paginated list of agents
type AgentList struct {
	Agents []Agent `json:"agents"`
	Total  uint64  `json:"total"`
	Limit  int     `json:"limit"`
	Offset uint64  `json:"offset"`
}

// Listing is the wire form of a standing sale offer
type Listing struct {
	AgentID uint64 `json:"agent_id"`
	Price   uint64 `json:"price"`
}

// Balance is the wire form of an account's rental position on one agent
type Balance struct {
	AgentID   uint64     `json:"agent_id"`
	Account   string     `json:"account"`
	Rentals   uint64     `json:"rentals"`
	Prepaid   uint64     `json:"prepaid"`
	UsesToday uint64     `json:"uses_today"`
	LastUseAt *time.Time `json:"last_use_at,omitempty"`
	CanUse    bool       `json:"can_use"`
}

// BalanceFromSnapshot builds the wire form from a ledger snapshot
func BalanceFromSnapshot(agentID uint64, account domain.Address, snap ledger.BalanceSnapshot, canUse bool) Balance {
	b := Balance{
		AgentID:   agentID,
		Account:   string(account),
		Rentals:   snap.Rentals,
		Prepaid:   snap.Prepaid,
		UsesToday: snap.UsesToday,
		CanUse:    canUse,
	}
	if !snap.LastUse.IsZero() {
		t := snap.LastUse
		b.LastUseAt = &t
	}
	return b
}

// Event is the wire form of a ledger event
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	AgentID        uint64    `json:"agent_id"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Counterparty   string    `json:"counterparty,omitempty"`
	Uses           uint64    `json:"uses,omitempty"`
	Amount         uint64    `json:"amount,omitempty"`
	Refund         uint64    `json:"refund,omitempty"`
	Price          uint64    `json:"price,omitempty"`
	ByOwner        bool      `json:"by_owner,omitempty"`
	Prepaid        bool      `json:"prepaid,omitempty"`
	RentalBalance  uint64    `json:"rental_balance,omitempty"`
	PrepaidBalance uint64    `json:"prepaid_balance,omitempty"`
}

// EventFromDomain converts a ledger event to the wire form
func EventFromDomain(ev domain.LedgerEvent) Event {
	e := Event{
		ID:             ev.ID,
		Type:           string(ev.Type),
		AgentID:        ev.AgentID,
		Actor:          string(ev.Actor),
		Timestamp:      ev.Timestamp,
		Uses:           ev.Uses,
		Amount:         ev.Amount,
		Refund:         ev.Refund,
		Price:          ev.Price,
		ByOwner:        ev.ByOwner,
		Prepaid:        ev.Prepaid,
		RentalBalance:  ev.RentalBalance,
		PrepaidBalance: ev.PrepaidBalance,
	}
	if ev.Counterparty != nil {
		e.Counterparty = string(*ev.Counterparty)
	}
	return e
}
