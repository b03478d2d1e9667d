package cachehttp

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"candlecache/internal/catalog"
	"candlecache/internal/chart"
	"candlecache/internal/logger"
	"candlecache/internal/manifest"
	"candlecache/internal/market"
	symbolpkg "candlecache/internal/pkg/symbol"
	"candlecache/internal/store"
	"candlecache/internal/timeunit"

	"github.com/gin-gonic/gin"
)

const (
	defaultCandleLimit = 500
	maxCandleLimit     = 5000
)

// PairReader 只读本地目录，不触发远端导入。
type PairReader interface {
	Cached() ([]market.Pair, error)
}

type CandleReader interface {
	LoadCanonical(pair market.Pair, unit timeunit.TimeUnit) ([]market.Candle, error)
	Inventory() ([]store.Entry, error)
}

type ManifestReader interface {
	List(ctx context.Context, unit string) ([]manifest.Record, error)
}

// Router 挂载 /api 下的查询接口。
type Router struct {
	pairs    PairReader
	candles  CandleReader
	manifest ManifestReader
}

func NewRouter(pairs PairReader, candles CandleReader, ledger ManifestReader) *Router {
	return &Router{pairs: pairs, candles: candles, manifest: ledger}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/pairs", r.handlePairs)
	group.GET("/pairs/:symbol", r.handlePair)
	group.GET("/candles/:symbol/:unit", r.handleCandles)
	group.GET("/inventory", r.handleInventory)
	if r.manifest != nil {
		group.GET("/manifest", r.handleManifest)
	}
}

func (r *Router) handlePairs(c *gin.Context) {
	pairs, err := r.pairs.Cached()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if quote := strings.ToUpper(strings.TrimSpace(c.Query("quote"))); quote != "" {
		filtered := make([]market.Pair, 0, len(pairs))
		for _, p := range pairs {
			if strings.EqualFold(p.QuoteAsset, quote) {
				filtered = append(filtered, p)
			}
		}
		pairs = filtered
	}
	if pairs == nil {
		pairs = []market.Pair{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(pairs), "pairs": pairs})
}

func (r *Router) handlePair(c *gin.Context) {
	pairs, err := r.pairs.Cached()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	p, ok := catalog.Find(pairs, c.Param("symbol"))
	if !ok {
		respondError(c, http.StatusNotFound, catalog.ErrPairNotFound)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (r *Router) handleCandles(c *gin.Context) {
	pair, unit, candles, ok := r.loadCandles(c)
	if !ok {
		return
	}
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    pair.Symbol,
		"time_unit": unit.Code,
		"count":     len(candles),
		"candles":   candles,
	})
}

func (r *Router) handleChart(c *gin.Context) {
	pair, unit, candles, ok := r.loadCandles(c)
	if !ok {
		return
	}
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := chart.RenderHTML(c.Writer, chart.Input{Symbol: pair.Symbol, TimeUnit: unit.Code, Candles: candles, Limit: limit}); err != nil {
		logger.Warnf("[http] render chart %s %s: %v", pair.Symbol, unit.Code, err)
	}
}

func (r *Router) handleInventory(c *gin.Context) {
	entries, err := r.candles.Inventory()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

func (r *Router) handleManifest(c *gin.Context) {
	unit := strings.TrimSpace(c.Query("unit"))
	if unit != "" {
		if _, err := timeunit.FromCode(unit); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}
	recs, err := r.manifest.List(c.Request.Context(), unit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []manifest.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "records": recs})
}

// loadCandles 解析路径参数并读取规范缓存，按时间升序返回；失败时已写好响应。
func (r *Router) loadCandles(c *gin.Context) (market.Pair, timeunit.TimeUnit, []market.Candle, bool) {
	unit, err := timeunit.FromCode(c.Param("unit"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return market.Pair{}, timeunit.TimeUnit{}, nil, false
	}
	pair := r.resolvePair(c.Param("symbol"))
	candles, err := r.candles.LoadCanonical(pair, unit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return pair, unit, nil, false
	}
	if len(candles) == 0 {
		respondError(c, http.StatusNotFound, errors.New("no cached candles"))
		return pair, unit, nil, false
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return pair, unit, candles, true
}

func (r *Router) resolvePair(symbol string) market.Pair {
	if pairs, err := r.pairs.Cached(); err == nil {
		if p, ok := catalog.Find(pairs, symbol); ok {
			return p
		}
	}
	return market.Pair{Symbol: symbolpkg.Compact(symbol)}
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultCandleLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxCandleLimit {
		n = maxCandleLimit
	}
	return n, nil
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
