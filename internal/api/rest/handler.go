package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/agent-ledger/internal/api/middleware"
	"github.com/feral-file/agent-ledger/internal/api/rest/dto"
	"github.com/feral-file/agent-ledger/internal/bank"
	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/ledger"
	"github.com/feral-file/agent-ledger/internal/store"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// MintAgent creates a new agent owned by the authenticated caller
	// POST /api/v1/agents
	MintAgent(c *gin.Context)

	// ListAgents retrieves agents with optional filters
	// GET /api/v1/agents?owner=<address>&rentable=true&for_sale=true&limit=<limit>&offset=<offset>
	ListAgents(c *gin.Context)

	// GetAgent retrieves a single agent by id
	// GET /api/v1/agents/:id
	GetAgent(c *gin.Context)

	// UpdateMetadata replaces an agent's metadata (owner only)
	// PUT /api/v1/agents/:id/metadata
	UpdateMetadata(c *gin.Context)

	// UpdateToolConfig replaces an agent's tool configuration (owner only)
	// PUT /api/v1/agents/:id/config
	UpdateToolConfig(c *gin.Context)

	// TransferAgent moves ownership to another address (owner only)
	// POST /api/v1/agents/:id/transfer
	TransferAgent(c *gin.Context)

	// PurchaseRental buys rental uses, optionally with prepaid inference credits
	// POST /api/v1/agents/:id/rentals
	PurchaseRental(c *gin.Context)

	// ConsumeUse spends one use in pay_per_use or prepaid mode
	// POST /api/v1/agents/:id/uses
	ConsumeUse(c *gin.Context)

	// GetBalance retrieves an account's rental position on one agent
	// GET /api/v1/agents/:id/balances/:account
	GetBalance(c *gin.Context)

	// CreateListing puts an agent up for sale at a fixed price (owner only)
	// POST /api/v1/agents/:id/listing
	CreateListing(c *gin.Context)

	// GetListing retrieves an agent's standing sale offer
	// GET /api/v1/agents/:id/listing
	GetListing(c *gin.Context)

	// DeleteListing withdraws an agent's sale offer (owner only)
	// DELETE /api/v1/agents/:id/listing
	DeleteListing(c *gin.Context)

	// PurchaseAgent buys a listed agent at or above its asking price
	// POST /api/v1/agents/:id/purchase
	PurchaseAgent(c *gin.Context)

	// GetFees retrieves the accrued fee pool balance (requires API key)
	// GET /api/v1/fees
	GetFees(c *gin.Context)

	// WithdrawFees pays the accrued fee pool out to the admin address (requires API key)
	// POST /api/v1/fees/withdraw
	WithdrawFees(c *gin.Context)

	// ListEvents retrieves journal entries in emission order
	// GET /api/v1/events?agent_id=<id>&actor=<address>&type=<event_type>&limit=<limit>&offset=<offset>
	ListEvents(c *gin.Context)

	// Deposit credits an account's currency balance (requires API key)
	// POST /api/v1/accounts/:address/deposits
	Deposit(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	ledger *ledger.Ledger
	bank   *bank.AccountBook
	store  store.Store
	admin  domain.Address
}

// NewHandler creates a new REST API handler
func NewHandler(l *ledger.Ledger, b *bank.AccountBook, st store.Store, admin domain.Address) Handler {
	return &handler{
		ledger: l,
		bank:   b,
		store:  st,
		admin:  admin,
	}
}

// caller returns the authenticated caller address or aborts with 403
func (h *handler) caller(c *gin.Context) (domain.Address, bool) {
	addr, ok := middleware.Caller(c)
	if !ok {
		respondWithError(c, http.StatusForbidden, errCodeForbidden, "Caller identity missing")
		return "", false
	}
	return addr, true
}

// agentID parses the :id path parameter or aborts with 400
func agentID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid agent id", c.Param("id"))
		return 0, false
	}
	return id, true
}

func (h *handler) MintAgent(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	event, err := h.ledger.Mint(caller, req.Metadata.ToDomain(), req.ToolConfig.ToDomain())
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	agent, cfg, owner, err := h.fullAgent(event.AgentID)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"agent": dto.AgentFromDomain(agent, cfg, owner),
		"event": dto.EventFromDomain(event),
	})
}

func (h *handler) ListAgents(c *gin.Context) {
	owner := c.Query("owner")
	rentable := c.Query("rentable") == "true"
	forSale := c.Query("for_sale") == "true"

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			respondBadRequest(c, "Invalid limit", v)
			return
		}
		limit = n
	}
	var offset uint64
	if v := c.Query("offset"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondBadRequest(c, "Invalid offset", v)
			return
		}
		offset = n
	}

	if forSale {
		listings := h.ledger.AgentsForSale()
		out := make([]dto.Listing, 0, len(listings))
		for _, l := range listings {
			out = append(out, dto.Listing{AgentID: l.AgentID, Price: l.Price})
		}
		c.JSON(http.StatusOK, gin.H{"listings": out})
		return
	}

	var (
		agents []domain.Agent
		total  uint64
	)
	switch {
	case owner != "":
		agents = h.ledger.AgentsOwnedBy(domain.Address(owner))
		total = uint64(len(agents))
	case rentable:
		agents = h.ledger.AgentsForRent()
		total = uint64(len(agents))
	default:
		agents, total = h.ledger.Agents(limit, offset)
	}

	out := dto.AgentList{
		Agents: make([]dto.Agent, 0, len(agents)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, a := range agents {
		cfg, err := h.ledger.ToolConfigOf(a.ID)
		if err != nil {
			respondInternalError(c, err, "Failed to load agent config")
			return
		}
		ownerAddr, err := h.ledger.OwnerOf(a.ID)
		if err != nil {
			respondInternalError(c, err, "Failed to load agent owner")
			return
		}
		out.Agents = append(out.Agents, dto.AgentFromDomain(a, cfg, ownerAddr))
	}

	c.JSON(http.StatusOK, out)
}

func (h *handler) GetAgent(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}

	agent, cfg, owner, err := h.fullAgent(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AgentFromDomain(agent, cfg, owner))
}

func (h *handler) fullAgent(id uint64) (domain.Agent, domain.ToolConfig, domain.Address, error) {
	agent, err := h.ledger.AgentOf(id)
	if err != nil {
		return domain.Agent{}, domain.ToolConfig{}, "", err
	}
	cfg, err := h.ledger.ToolConfigOf(id)
	if err != nil {
		return domain.Agent{}, domain.ToolConfig{}, "", err
	}
	owner, err := h.ledger.OwnerOf(id)
	if err != nil {
		return domain.Agent{}, domain.ToolConfig{}, "", err
	}
	return agent, cfg, owner, nil
}

func (h *handler) UpdateMetadata(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.Metadata
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	event, err := h.ledger.UpdateMetadata(caller, id, req.ToDomain())
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) UpdateToolConfig(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.ToolConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	event, err := h.ledger.UpdateToolConfig(caller, id, req.ToDomain())
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) TransferAgent(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	event, err := h.ledger.Transfer(caller, id, domain.Address(req.To))
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) PurchaseRental(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.RentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	var (
		event domain.LedgerEvent
		err   error
	)
	if req.WithInference {
		event, err = h.ledger.PurchaseRentalWithInference(caller, id, req.Uses, req.Payment)
	} else {
		event, err = h.ledger.PurchaseRental(caller, id, req.Uses, req.Payment)
	}
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) ConsumeUse(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	mode := domain.ConsumeMode(req.Mode)
	if !mode.Valid() {
		respondBadRequest(c, "Invalid consume mode", req.Mode)
		return
	}

	event, err := h.ledger.ConsumeUse(caller, id, req.Payment, mode)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) GetBalance(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	account := domain.Address(c.Param("account"))
	if !account.Valid() {
		respondBadRequest(c, "Invalid account address")
		return
	}

	snap, err := h.ledger.BalanceSnapshotOf(id, account)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	canUse, err := h.ledger.CanUse(id, account)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceFromSnapshot(id, account, snap, canUse))
}

func (h *handler) CreateListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	event, err := h.ledger.ListForSale(caller, id, req.Price)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) GetListing(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}

	listing, err := h.ledger.ListingOf(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	if listing == nil {
		respondNotFound(c, "Agent is not listed for sale")
		return
	}

	c.JSON(http.StatusOK, dto.Listing{AgentID: listing.AgentID, Price: listing.Price})
}

func (h *handler) DeleteListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	event, err := h.ledger.Delist(caller, id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) PurchaseAgent(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	event, err := h.ledger.Purchase(caller, id, req.Payment)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) GetFees(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accrued_fees": h.ledger.AccruedFees()})
}

func (h *handler) WithdrawFees(c *gin.Context) {
	event, err := h.ledger.WithdrawFees(h.admin)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": dto.EventFromDomain(event)})
}

func (h *handler) ListEvents(c *gin.Context) {
	var filter store.EventFilter

	if v := c.Query("agent_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondBadRequest(c, "Invalid agent_id", v)
			return
		}
		filter.AgentID = id
	}
	filter.Actor = c.Query("actor")
	filter.EventType = c.Query("type")

	filter.Limit = 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			respondBadRequest(c, "Invalid limit", v)
			return
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondBadRequest(c, "Invalid offset", v)
			return
		}
		filter.Offset = n
	}

	rows, err := h.store.ListEvents(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "Failed to list events")
		return
	}

	events := make([]dto.Event, 0, len(rows))
	for _, row := range rows {
		var ev domain.LedgerEvent
		if err := json.Unmarshal(row.Payload, &ev); err != nil {
			respondInternalError(c, err, "Failed to decode event payload")
			return
		}
		events = append(events, dto.EventFromDomain(ev))
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handler) Deposit(c *gin.Context) {
	account := domain.Address(c.Param("address"))
	if !account.Valid() {
		respondBadRequest(c, "Invalid account address")
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	h.bank.Deposit(account, req.Amount)

	c.JSON(http.StatusOK, gin.H{
		"account": string(account),
		"balance": h.bank.BalanceOf(account),
	})
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"agents": h.ledger.TotalAgents(),
	})
}
