package app

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"sentitrade/internal/risk"
)

// routes 注册状态查询与控制接口。
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/account", a.handleAccount)
	mux.HandleFunc("/trades", a.handleTrades)
	mux.HandleFunc("/prices", a.handlePrices)
	mux.HandleFunc("/analyses", a.handleAnalyses)
	mux.HandleFunc("/activity", a.handleActivity)
	mux.HandleFunc("/start", a.handleStart)
	mux.HandleFunc("/stop", a.handleStop)
	mux.HandleFunc("/risk", a.handleRisk)

	return mux
}

func (a *App) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":  a.engine.State(),
		"ledger": a.tradeBook.Ledger(),
	})
}

func (a *App) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}

	if r.URL.Query().Get("status") == "open" {
		writeJSON(w, http.StatusOK, a.tradeBook.OpenTrades())
		return
	}
	writeJSON(w, http.StatusOK, a.tradeBook.AllTrades())
}

func (a *App) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}

	writeJSON(w, http.StatusOK, a.marketFeed.Snapshot())
}

func (a *App) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}

	writeJSON(w, http.StatusOK, a.engine.Analyses())
}

func (a *App) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit 必须为正整数")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, a.activityLog.Recent(limit))
}

func (a *App) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}

	a.engine.Start(a.runCtx)
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": a.engine.State()})
}

func (a *App) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}

	a.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": a.engine.State()})
}

type riskUpdateRequest struct {
	Symbol           string  `json:"symbol"`
	RiskPercentage   float64 `json:"risk_percentage"`
	StopLossDistance float64 `json:"stop_loss_distance"`
}

func (a *App) handleRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}

	var req riskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}

	err := a.engine.UpdateRiskSettings(req.Symbol, risk.Settings{
		RiskPercentage:   req.RiskPercentage,
		StopLossDistance: req.StopLossDistance,
	})
	if err != nil {
		a.logger.Warn("风控参数更新被拒绝", zap.String("symbol", req.Symbol), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, _ := a.settings.Get(req.Symbol)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   req.Symbol,
		"settings": settings,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// 客户端提前断开时写入失败，无需额外处理。
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
