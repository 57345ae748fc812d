package main

import (
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"ladder-platform/backend/internal/ladder"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// httpStatus maps the command error taxonomy onto HTTP codes.
func httpStatus(kind ladder.Kind) int {
	switch kind {
	case ladder.KindValidation:
		return http.StatusBadRequest
	case ladder.KindAuth:
		return http.StatusForbidden
	case ladder.KindState:
		return http.StatusConflict
	case ladder.KindNotFound:
		return http.StatusNotFound
	case ladder.KindIntegrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c *gin.Context, err error) {
	var le *ladder.Error
	if errors.As(err, &le) {
		c.JSON(httpStatus(le.Kind), gin.H{"error": le.Message, "kind": string(le.Kind)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
}

func callerUID(c *gin.Context) int64 {
	return c.GetInt64("discord_uid")
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// authMiddleware validates the bearer token and stashes the caller's
// discord uid on the context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		uid, err := s.authService.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Set("discord_uid", uid)
		c.Next()
	}
}

// handleIssueToken exchanges the gateway API key plus a discord uid
// for a short-lived JWT. The gateway authenticates users upstream.
func (s *Server) handleIssueToken(c *gin.Context) {
	var req struct {
		APIKey     string `json:"api_key"`
		DiscordUID int64  `json:"discord_uid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.authService.CheckAPIKey(req.APIKey); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	token, err := s.authService.GenerateToken(req.DiscordUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if s.redis != nil {
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			status["redis"] = "down"
		} else {
			status["redis"] = "ok"
		}
	}
	pending, err := s.writeLog.PendingCount()
	if err == nil {
		status["writelog_pending"] = pending
	}
	high, low := s.router.QueueDepths()
	status["notify_depth"] = high + low
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleHelp(c *gin.Context) {
	c.JSON(http.StatusOK, ladder.Help())
}

func (s *Server) handleSetup(c *gin.Context) {
	var req ladder.SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.Setup(c.Request.Context(), callerUID(c), req); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}

func (s *Server) handleSetCountry(c *gin.Context) {
	var req struct {
		Country string `json:"country" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.SetCountry(c.Request.Context(), callerUID(c), req.Country); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"country": req.Country})
}

func (s *Server) handleAcceptTerms(c *gin.Context) {
	if err := s.ladder.AcceptTerms(c.Request.Context(), callerUID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (s *Server) handleDeclineTerms(c *gin.Context) {
	if err := s.ladder.DeclineTerms(c.Request.Context(), callerUID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": false})
}

func (s *Server) handleAckShieldBattery(c *gin.Context) {
	if err := s.ladder.AckShieldBatteryBug(c.Request.Context(), callerUID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (s *Server) handleQueue(c *gin.Context) {
	var req struct {
		Races []string `json:"races" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.Queue(c.Request.Context(), callerUID(c), req.Races); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ladder.Status(c.Request.Context()))
}

func (s *Server) handleDequeue(c *gin.Context) {
	if err := s.ladder.Dequeue(c.Request.Context(), callerUID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": false})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ladder.Status(c.Request.Context()))
}

func (s *Server) handleReport(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.ReportResult(c.Request.Context(), callerUID(c), matchID, req.Outcome); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reported": req.Outcome})
}

// handleUploadReplay accepts either a multipart file, stored under a
// generated name, or a JSON body naming a path already on disk.
func (s *Server) handleUploadReplay(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var path string
	if file, err := c.FormFile("file"); err == nil {
		path = filepath.Join(s.config.ReplayStorageDir, uuid.NewString()+filepath.Ext(file.Filename))
		if err := c.SaveUploadedFile(file, path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
	} else {
		var req struct {
			Path string `json:"path" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		path = req.Path
	}
	meta, verification, err := s.ladder.UploadReplay(c.Request.Context(), callerUID(c), matchID, path)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metadata": meta, "verification": verification})
}

func (s *Server) handleGetMatch(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := s.ladder.Match(matchID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleOwnProfile(c *gin.Context) {
	view, err := s.ladder.Profile(c.Request.Context(), callerUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleProfile(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	view, err := s.ladder.Profile(c.Request.Context(), uid)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	limit := 25
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := s.ladder.Leaderboard(c.Param("race"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleRaces(c *gin.Context) {
	c.JSON(http.StatusOK, s.ladder.Races())
}

func (s *Server) handleAdminResolve(c *gin.Context) {
	var req struct {
		MatchID int64  `json:"match_id" binding:"required"`
		Result  *int   `json:"result" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.AdminResolve(c.Request.Context(), callerUID(c), req.MatchID, *req.Result, req.Reason); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": req.MatchID})
}

func (s *Server) handleAdminAdjustMMR(c *gin.Context) {
	var req struct {
		DiscordUID int64  `json:"discord_uid" binding:"required"`
		Race       string `json:"race" binding:"required"`
		Mode       string `json:"mode" binding:"required"`
		Value      int    `json:"value"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.AdminAdjustMMR(c.Request.Context(), callerUID(c), req.DiscordUID, req.Race, req.Mode, req.Value, req.Reason); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjusted": req.DiscordUID})
}

func (s *Server) handleAdminRemoveFromQueue(c *gin.Context) {
	var req struct {
		DiscordUID int64  `json:"discord_uid" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.AdminRemoveFromQueue(c.Request.Context(), callerUID(c), req.DiscordUID, req.Reason); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": req.DiscordUID})
}

func (s *Server) handleAdminResetAborts(c *gin.Context) {
	var req struct {
		DiscordUID int64  `json:"discord_uid" binding:"required"`
		Value      int    `json:"value"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.AdminResetAborts(c.Request.Context(), callerUID(c), req.DiscordUID, req.Value, req.Reason); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"aborts": req.Value})
}

func (s *Server) handleAdminToggleBan(c *gin.Context) {
	var req struct {
		DiscordUID int64  `json:"discord_uid" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	banned, err := s.ladder.AdminToggleBan(c.Request.Context(), callerUID(c), req.DiscordUID, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banned": banned})
}

func (s *Server) handleAdminUnblock(c *gin.Context) {
	var req struct {
		DiscordUID int64  `json:"discord_uid" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.ladder.AdminUnblock(c.Request.Context(), callerUID(c), req.DiscordUID, req.Reason); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unblocked": req.DiscordUID})
}

func (s *Server) handleAdminClearQueue(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// Body optional for this one.
	_ = c.ShouldBindJSON(&req)
	cleared, err := s.ladder.AdminClearQueue(c.Request.Context(), callerUID(c), req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (s *Server) handleOwnerToggleAdmin(c *gin.Context) {
	var req struct {
		DiscordUID int64  `json:"discord_uid" binding:"required"`
		Name       string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	isAdmin, err := s.ladder.OwnerToggleAdmin(c.Request.Context(), callerUID(c), req.DiscordUID, req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": isAdmin})
}

func (s *Server) handleAdminActions(c *gin.Context) {
	if !s.ladder.IsAdmin(callerUID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "kind": string(ladder.KindAuth)})
		return
	}
	actions := s.store.AdminActions()
	if len(actions) > 100 {
		actions = actions[len(actions)-100:]
	}
	c.JSON(http.StatusOK, actions)
}

// handleWebSocket upgrades the connection and registers it with the
// notification hub so routed messages reach the player.
func (s *Server) handleWebSocket(c *gin.Context) {
	token := c.Query("token")
	uid, err := s.authService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] upgrade error:", err)
		return
	}

	// Register starts the connection's single write pump.
	client := s.hub.Register(uid, conn)

	// Read loop: the protocol is server-push only, but reading drives
	// close detection.
	go func() {
		defer s.hub.Unregister(uid, client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
