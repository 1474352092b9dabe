package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmanzanog/market-sim/internal/application"
	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/persistence/csvexport"
)

// SimulationService defines the operations exposed over HTTP.
type SimulationService interface {
	CreateInstrument(ctx context.Context, symbol, name string, price domain.Decimal, seed []domain.PricePoint) (*domain.Instrument, error)
	CreateRealInstrument(ctx context.Context, symbol, name string) (*domain.Instrument, error)
	UpdatePrice(ctx context.Context, symbol string, price domain.Decimal) (*domain.Instrument, error)
	RefreshInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	RefreshRealInstruments(ctx context.Context) *application.RefreshResult
	Instrument(symbol string) (*domain.Instrument, error)
	Instruments() []*domain.Instrument

	CreateMarket(ctx context.Context, name string, symbols []string) (domain.MarketRecord, error)
	RegisterInstrument(ctx context.Context, market, symbol string) (domain.MarketRecord, error)
	MarketPrice(market, symbol string) (domain.Decimal, error)
	RemoveInstrument(ctx context.Context, market, symbol string) error
	DeclareBankrupt(ctx context.Context, market, symbol string) error
	SimulateMarket(ctx context.Context, name string) ([]domain.PriceChange, error)
	UnionMarkets(ctx context.Context, left, right string) (domain.MarketRecord, error)
	MergeMarkets(ctx context.Context, target, source string) (domain.MarketRecord, error)
	MarketsEqual(left, right string) (bool, error)
	Market(name string) (domain.MarketRecord, error)
	Markets() []domain.MarketRecord
	MarketItem(name string, index int) (*domain.Instrument, error)

	CreateInvestor(ctx context.Context, name string, capital domain.Decimal, strategy string) (domain.InvestorRecord, error)
	Investor(name string) (domain.InvestorRecord, error)
	Buy(ctx context.Context, investor, symbol string, quantity int64) (domain.Transaction, error)
	Sell(ctx context.Context, investor, symbol string, quantity int64) (domain.Transaction, error)
	Trade(ctx context.Context, investor, side, symbol string, quantity int64) (domain.Transaction, error)
	Holdings(name string) (domain.HoldingsSummary, error)
	Transactions(name string) ([]domain.Transaction, error)
	TotalInvested(name string) (domain.Decimal, error)
	Recommend(name string) (*domain.Recommendation, error)
	InvestorsEqual(left, right string) (bool, error)

	Snapshot() *domain.Snapshot
}

type Handler struct {
	service SimulationService
}

func NewHandler(service SimulationService) *Handler {
	return &Handler{
		service: service,
	}
}

// Requests

type CreateInstrumentRequest struct {
	Symbol  string              `json:"symbol" binding:"required"`
	Name    string              `json:"name"`
	Price   domain.Decimal      `json:"price"`
	History []domain.PricePoint `json:"history"`
}

type CreateRealInstrumentRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Name   string `json:"name"`
}

type UpdatePriceRequest struct {
	Price domain.Decimal `json:"price"`
}

type CreateMarketRequest struct {
	Name    string   `json:"name" binding:"required"`
	Symbols []string `json:"symbols"`
}

type SymbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

type MergeMarketRequest struct {
	Source string `json:"source" binding:"required"`
}

type UnionMarketsRequest struct {
	Left  string `json:"left" binding:"required"`
	Right string `json:"right" binding:"required"`
}

type CreateInvestorRequest struct {
	Name     string         `json:"name" binding:"required"`
	Capital  domain.Decimal `json:"capital"`
	Strategy string         `json:"strategy" binding:"required"`
}

type TradeRequest struct {
	Side     string `json:"side"`
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

// Responses

type ErrorResponse struct {
	Error string `json:"error"`
}

type InstrumentResponse struct {
	Symbol       string                  `json:"symbol"`
	Name         string                  `json:"name"`
	Source       domain.InstrumentSource `json:"source"`
	CurrentPrice domain.Decimal          `json:"current_price"`
	History      []domain.PricePoint     `json:"price_history,omitempty"`
	Stats        *domain.PriceStats      `json:"stats,omitempty"`
}

type MarketResponse struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

type HoldingResponse struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

type InvestorResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Strategy  domain.Strategy   `json:"strategy"`
	Capital   domain.Decimal    `json:"capital"`
	CreatedAt time.Time         `json:"created_at"`
	Holdings  []HoldingResponse `json:"holdings"`
}

type HoldingsResponse struct {
	domain.HoldingsSummary
	Text string `json:"text"`
}

type EqualityResponse struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	Equal bool   `json:"equal"`
}

func newInstrumentResponse(inst *domain.Instrument, detailed bool) InstrumentResponse {
	resp := InstrumentResponse{
		Symbol:       inst.Symbol,
		Name:         inst.Name,
		Source:       inst.Source,
		CurrentPrice: inst.CurrentPrice,
	}
	if detailed {
		stats := inst.Stats()
		resp.History = inst.History
		resp.Stats = &stats
	}
	return resp
}

func newMarketResponse(rec domain.MarketRecord) MarketResponse {
	symbols := rec.Symbols
	if symbols == nil {
		symbols = []string{}
	}
	return MarketResponse{Name: rec.Name, Symbols: symbols}
}

func newInvestorResponse(rec domain.InvestorRecord) InvestorResponse {
	holdings := make([]HoldingResponse, len(rec.Holdings))
	for i, h := range rec.Holdings {
		holdings[i] = HoldingResponse{Symbol: h.Symbol, Quantity: h.Quantity}
	}
	return InvestorResponse{
		ID:        rec.ID,
		Name:      rec.Name,
		Strategy:  rec.Strategy,
		Capital:   rec.Capital,
		CreatedAt: rec.CreatedAt,
		Holdings:  holdings,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol),
		errors.Is(err, domain.ErrUnknownMarket),
		errors.Is(err, domain.ErrUnknownInvestor),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, csvexport.ErrUnknownDataset),
		errors.Is(err, domain.ErrNoMarketData):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSymbol),
		errors.Is(err, domain.ErrDuplicateInstrument),
		errors.Is(err, domain.ErrDuplicateMarketName),
		errors.Is(err, domain.ErrDuplicateInvestor),
		errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrAlreadyBankrupt):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientHoldings),
		errors.Is(err, domain.ErrNotOwned),
		errors.Is(err, domain.ErrNoAffordableInstrument),
		errors.Is(err, domain.ErrNoTransactions),
		errors.Is(err, domain.ErrNotRealBacked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidPriceHistory),
		errors.Is(err, domain.ErrInvalidInstrument),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidCapital),
		errors.Is(err, domain.ErrInvalidInvestor),
		errors.Is(err, domain.ErrUnknownStrategy),
		errors.Is(err, domain.ErrUnknownTradeKind),
		errors.Is(err, domain.ErrInvalidVolatility):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrNoPriceFeed):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrFeedUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, msg string, err error, attrs ...any) {
	status := statusFor(err)
	attrs = append(attrs, "error", err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), msg, attrs...)
	} else {
		slog.WarnContext(c.Request.Context(), msg, attrs...)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		slog.ErrorContext(c.Request.Context(), "Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

// Instruments

func (h *Handler) CreateInstrument(c *gin.Context) {
	var req CreateInstrumentRequest
	if !h.bind(c, &req) {
		return
	}

	inst, err := h.service.CreateInstrument(c.Request.Context(), req.Symbol, req.Name, req.Price, req.History)
	if err != nil {
		h.fail(c, "Failed to create instrument", err, "symbol", req.Symbol)
		return
	}

	c.JSON(http.StatusCreated, newInstrumentResponse(inst, true))
}

func (h *Handler) CreateRealInstrument(c *gin.Context) {
	var req CreateRealInstrumentRequest
	if !h.bind(c, &req) {
		return
	}

	inst, err := h.service.CreateRealInstrument(c.Request.Context(), req.Symbol, req.Name)
	if err != nil {
		h.fail(c, "Failed to create real instrument", err, "symbol", req.Symbol)
		return
	}

	c.JSON(http.StatusCreated, newInstrumentResponse(inst, true))
}

func (h *Handler) ListInstruments(c *gin.Context) {
	instruments := h.service.Instruments()
	resp := make([]InstrumentResponse, len(instruments))
	for i, inst := range instruments {
		resp[i] = newInstrumentResponse(inst, false)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetInstrument(c *gin.Context) {
	symbol := c.Param("symbol")

	inst, err := h.service.Instrument(symbol)
	if err != nil {
		h.fail(c, "Failed to get instrument", err, "symbol", symbol)
		return
	}

	c.JSON(http.StatusOK, newInstrumentResponse(inst, true))
}

func (h *Handler) UpdatePrice(c *gin.Context) {
	symbol := c.Param("symbol")
	var req UpdatePriceRequest
	if !h.bind(c, &req) {
		return
	}

	inst, err := h.service.UpdatePrice(c.Request.Context(), symbol, req.Price)
	if err != nil {
		h.fail(c, "Failed to update price", err, "symbol", symbol)
		return
	}

	c.JSON(http.StatusOK, newInstrumentResponse(inst, false))
}

func (h *Handler) RefreshInstrument(c *gin.Context) {
	symbol := c.Param("symbol")

	inst, err := h.service.RefreshInstrument(c.Request.Context(), symbol)
	if err != nil {
		h.fail(c, "Failed to refresh instrument", err, "symbol", symbol)
		return
	}

	c.JSON(http.StatusOK, newInstrumentResponse(inst, false))
}

func (h *Handler) RefreshInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.RefreshRealInstruments(c.Request.Context()))
}

// Markets

func (h *Handler) CreateMarket(c *gin.Context) {
	var req CreateMarketRequest
	if !h.bind(c, &req) {
		return
	}

	m, err := h.service.CreateMarket(c.Request.Context(), req.Name, req.Symbols)
	if err != nil {
		h.fail(c, "Failed to create market", err, "market", req.Name)
		return
	}

	c.JSON(http.StatusCreated, newMarketResponse(m))
}

func (h *Handler) ListMarkets(c *gin.Context) {
	markets := h.service.Markets()
	resp := make([]MarketResponse, len(markets))
	for i, m := range markets {
		resp[i] = newMarketResponse(m)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMarket(c *gin.Context) {
	name := c.Param("name")

	m, err := h.service.Market(name)
	if err != nil {
		h.fail(c, "Failed to get market", err, "market", name)
		return
	}

	c.JSON(http.StatusOK, newMarketResponse(m))
}

func (h *Handler) GetMarketItem(c *gin.Context) {
	name := c.Param("name")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "index must be an integer"})
		return
	}

	inst, err := h.service.MarketItem(name, index)
	if err != nil {
		h.fail(c, "Failed to get market item", err, "market", name, "index", index)
		return
	}

	c.JSON(http.StatusOK, newInstrumentResponse(inst, false))
}

func (h *Handler) RegisterInstrument(c *gin.Context) {
	name := c.Param("name")
	var req SymbolRequest
	if !h.bind(c, &req) {
		return
	}

	m, err := h.service.RegisterInstrument(c.Request.Context(), name, req.Symbol)
	if err != nil {
		h.fail(c, "Failed to register instrument", err, "market", name, "symbol", req.Symbol)
		return
	}

	c.JSON(http.StatusOK, newMarketResponse(m))
}

func (h *Handler) GetMarketPrice(c *gin.Context) {
	name, symbol := c.Param("name"), c.Param("symbol")

	price, err := h.service.MarketPrice(name, symbol)
	if err != nil {
		h.fail(c, "Failed to get market price", err, "market", name, "symbol", symbol)
		return
	}

	c.JSON(http.StatusOK, gin.H{"market": name, "symbol": symbol, "price": price})
}

func (h *Handler) RemoveInstrument(c *gin.Context) {
	name, symbol := c.Param("name"), c.Param("symbol")

	if err := h.service.RemoveInstrument(c.Request.Context(), name, symbol); err != nil {
		h.fail(c, "Failed to remove instrument", err, "market", name, "symbol", symbol)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeclareBankrupt(c *gin.Context) {
	name := c.Param("name")
	var req SymbolRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.service.DeclareBankrupt(c.Request.Context(), name, req.Symbol); err != nil {
		h.fail(c, "Failed to declare bankruptcy", err, "market", name, "symbol", req.Symbol)
		return
	}

	c.JSON(http.StatusOK, gin.H{"market": name, "symbol": req.Symbol, "bankrupt": true})
}

func (h *Handler) SimulateMarket(c *gin.Context) {
	name := c.Param("name")

	changes, err := h.service.SimulateMarket(c.Request.Context(), name)
	if err != nil {
		h.fail(c, "Failed to simulate market", err, "market", name)
		return
	}

	c.JSON(http.StatusOK, gin.H{"market": name, "changes": changes})
}

func (h *Handler) MergeMarkets(c *gin.Context) {
	name := c.Param("name")
	var req MergeMarketRequest
	if !h.bind(c, &req) {
		return
	}

	m, err := h.service.MergeMarkets(c.Request.Context(), name, req.Source)
	if err != nil {
		h.fail(c, "Failed to merge markets", err, "market", name, "source", req.Source)
		return
	}

	c.JSON(http.StatusOK, newMarketResponse(m))
}

func (h *Handler) UnionMarkets(c *gin.Context) {
	var req UnionMarketsRequest
	if !h.bind(c, &req) {
		return
	}

	m, err := h.service.UnionMarkets(c.Request.Context(), req.Left, req.Right)
	if err != nil {
		h.fail(c, "Failed to union markets", err, "left", req.Left, "right", req.Right)
		return
	}

	c.JSON(http.StatusCreated, newMarketResponse(m))
}

func (h *Handler) MarketsEqual(c *gin.Context) {
	left, right := c.Param("name"), c.Param("other")

	equal, err := h.service.MarketsEqual(left, right)
	if err != nil {
		h.fail(c, "Failed to compare markets", err, "left", left, "right", right)
		return
	}

	c.JSON(http.StatusOK, EqualityResponse{Left: left, Right: right, Equal: equal})
}

// Investors

func (h *Handler) CreateInvestor(c *gin.Context) {
	var req CreateInvestorRequest
	if !h.bind(c, &req) {
		return
	}

	inv, err := h.service.CreateInvestor(c.Request.Context(), req.Name, req.Capital, req.Strategy)
	if err != nil {
		h.fail(c, "Failed to create investor", err, "investor", req.Name)
		return
	}

	c.JSON(http.StatusCreated, newInvestorResponse(inv))
}

func (h *Handler) GetInvestor(c *gin.Context) {
	name := c.Param("name")

	inv, err := h.service.Investor(name)
	if err != nil {
		h.fail(c, "Failed to get investor", err, "investor", name)
		return
	}

	c.JSON(http.StatusOK, newInvestorResponse(inv))
}

func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, "buy", func(ctx context.Context, name string, req TradeRequest) (domain.Transaction, error) {
		return h.service.Buy(ctx, name, req.Symbol, req.Quantity)
	})
}

func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, "sell", func(ctx context.Context, name string, req TradeRequest) (domain.Transaction, error) {
		return h.service.Sell(ctx, name, req.Symbol, req.Quantity)
	})
}

// Trade takes the side from the request body. "acquire" and "release" are accepted aliases.
func (h *Handler) Trade(c *gin.Context) {
	h.trade(c, "", func(ctx context.Context, name string, req TradeRequest) (domain.Transaction, error) {
		return h.service.Trade(ctx, name, req.Side, req.Symbol, req.Quantity)
	})
}

func (h *Handler) trade(c *gin.Context, side string, execute func(ctx context.Context, name string, req TradeRequest) (domain.Transaction, error)) {
	name := c.Param("name")
	var req TradeRequest
	if !h.bind(c, &req) {
		return
	}
	if side == "" {
		side = req.Side
	}

	tx, err := execute(c.Request.Context(), name, req)
	if err != nil {
		h.fail(c, "Failed to execute trade", err, "investor", name, "side", side, "symbol", req.Symbol)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

func (h *Handler) GetHoldings(c *gin.Context) {
	name := c.Param("name")

	summary, err := h.service.Holdings(name)
	if err != nil {
		h.fail(c, "Failed to get holdings", err, "investor", name)
		return
	}

	c.JSON(http.StatusOK, HoldingsResponse{HoldingsSummary: summary, Text: summary.String()})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	name := c.Param("name")

	txs, err := h.service.Transactions(name)
	if err != nil {
		h.fail(c, "Failed to get transactions", err, "investor", name)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	c.JSON(http.StatusOK, txs)
}

func (h *Handler) GetTotalInvested(c *gin.Context) {
	name := c.Param("name")

	total, err := h.service.TotalInvested(name)
	if err != nil {
		h.fail(c, "Failed to compute total invested", err, "investor", name)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investor": name, "total_invested": total})
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	name := c.Param("name")

	rec, err := h.service.Recommend(name)
	if err != nil {
		h.fail(c, "Failed to recommend instruments", err, "investor", name)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) InvestorsEqual(c *gin.Context) {
	left, right := c.Param("name"), c.Param("other")

	equal, err := h.service.InvestorsEqual(left, right)
	if err != nil {
		h.fail(c, "Failed to compare investors", err, "left", left, "right", right)
		return
	}

	c.JSON(http.StatusOK, EqualityResponse{Left: left, Right: right, Equal: equal})
}

// Export

// Export streams one snapshot table as a CSV attachment.
func (h *Handler) Export(c *gin.Context) {
	dataset := c.Param("dataset")

	var buf bytes.Buffer
	if err := csvexport.Write(&buf, dataset, h.service.Snapshot(), time.Now()); err != nil {
		h.fail(c, "Failed to export dataset", err, "dataset", dataset)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, dataset))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
