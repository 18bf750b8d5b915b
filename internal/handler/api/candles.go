package api

import (
	"errors"
	"net/http"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
	"CandleHist/internal/service/ratelimit"
	"CandleHist/internal/usecase"
	xhttp "CandleHist/pkg/http"
	xlogger "CandleHist/pkg/logger"
	"CandleHist/pkg/util"

	"github.com/labstack/echo/v4"
)

// CandlesHandler exposes the candle history read API.
type CandlesHandler struct {
	logger  *xlogger.Logger
	manager *usecase.CandleManager
	health  usecase.HealthSource
	pairs   drepo.AssetPairDirectory

	name    string
	version string
	env     string

	limiter *ratelimit.Limiter
}

// HandlerOption configures CandlesHandler.
type HandlerOption func(*CandlesHandler)

// WithRateLimiter limits history reads per client IP.
func WithRateLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *CandlesHandler) {
		h.limiter = l
	}
}

// WithAssetPairDirectory rejects requests for pairs the directory does not
// know or has disabled. Directory outages do not block reads.
func WithAssetPairDirectory(pairs drepo.AssetPairDirectory) HandlerOption {
	return func(h *CandlesHandler) {
		h.pairs = pairs
	}
}

func NewCandlesHandler(logger *xlogger.Logger, manager *usecase.CandleManager, health usecase.HealthSource, name, version, env string, opts ...HandlerOption) *CandlesHandler {
	h := &CandlesHandler{
		logger:  logger,
		manager: manager,
		health:  health,
		name:    name,
		version: version,
		env:     env,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *CandlesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		g.GET("/candlesHistory/:assetPairId/:priceType/:timeInterval", h.CandlesHistory,
			RateLimit(h.limiter, 100, 50))
	} else {
		g.GET("/candlesHistory/:assetPairId/:priceType/:timeInterval", h.CandlesHistory)
	}
	g.GET("/isAlive", h.IsAlive)
}

func (h *CandlesHandler) CandlesHistory(c echo.Context) error {
	req := &models.CandlesHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	priceType := models.ParsePriceType(req.PriceType)
	if priceType == models.PriceTypeUnspecified {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown price type %q", req.PriceType))
	}
	interval := models.ParseTimeInterval(req.TimeInterval)
	if interval == models.IntervalUnspecified {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown time interval %q", req.TimeInterval))
	}
	from, ok := util.ParseTime(req.FromMoment)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("cannot parse fromMoment %q", req.FromMoment))
	}
	to, ok := util.ParseTime(req.ToMoment)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("cannot parse toMoment %q", req.ToMoment))
	}

	if h.pairs != nil {
		pair, err := h.pairs.TryGetEnabledPair(c.Request().Context(), req.AssetPairID)
		if err != nil {
			h.logger.Warn("asset pair lookup failed", xlogger.Error(err))
		} else if pair == nil {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("asset pair %q is unknown or disabled", req.AssetPairID))
		}
	}

	history, err := h.manager.GetCandles(c.Request().Context(), req.AssetPairID, priceType, interval, from.UTC(), to.UTC())
	if err != nil {
		return h.errorResponse(c, err)
	}
	if history == nil {
		history = []models.Candle{}
	}

	return xhttp.SuccessResponse(c, &models.CandlesHistoryResponse{
		AssetPairID:  req.AssetPairID,
		PriceType:    priceType.String(),
		TimeInterval: interval.String(),
		History:      history,
	})
}

func (h *CandlesHandler) IsAlive(c echo.Context) error {
	return xhttp.SuccessResponse(c, &models.IsAliveResponse{
		Name:        h.name,
		Version:     h.version,
		Env:         h.env,
		Persistence: h.health.Health(),
	})
}

func (h *CandlesHandler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrInvalidAlignment):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, models.ErrUnsupportedAssetPair):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrStoreUnavailable):
		h.logger.Error("history store unavailable", xlogger.Error(err))
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_STORE_UNAVAILABLE", "", "history store is unavailable", http.StatusServiceUnavailable))
	default:
		h.logger.Error("candles history failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

var _ xhttp.Handler = (*CandlesHandler)(nil)
