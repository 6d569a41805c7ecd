// Package api is the REST facade over the engine. It translates HTTP
// requests into engine and store calls and maps the error taxonomy onto
// status codes; no orchestration logic lives here.
package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faro-networks/faro/pkg/driver"
	"github.com/faro-networks/faro/pkg/fleet"
	"github.com/faro-networks/faro/pkg/inventory"
	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
	"github.com/faro-networks/faro/pkg/version"
)

// Server holds what the handlers need.
type Server struct {
	engine   *fleet.Engine
	secret   []byte
	tokenTTL time.Duration
}

// NewServer builds the API server over an engine.
func NewServer(e *fleet.Engine, jwtSecret string, tokenTTL time.Duration) *Server {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Server{engine: e, secret: []byte(jwtSecret), tokenTTL: tokenTTL}
}

// Router wires every route onto a fresh gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
	})

	api := r.Group("/api")
	api.POST("/login", s.handleLogin)

	auth := api.Group("/", s.authRequired())
	{
		auth.GET("/devices", s.handleDeviceList)
		auth.POST("/devices", s.handleDeviceAdd)
		auth.GET("/devices/:id", s.handleDeviceGet)
		auth.DELETE("/devices/:id", s.handleDeviceDelete)

		auth.POST("/devices/:id/backup", s.handleBackupRun)
		auth.POST("/devices/:id/diagnostic", s.handleDiagnostic)
		auth.GET("/devices/:id/snapshots", s.handleSnapshotList)
		auth.GET("/snapshots/:id/export", s.handleSnapshotExport)
		auth.GET("/snapshots/:id/diff", s.handleSnapshotDiff)

		auth.GET("/devices/:id/ports", s.handlePortList)
		auth.POST("/devices/:id/ports/sync", s.handlePortSync)
		auth.GET("/devices/:id/ports/stats", s.handlePortStats)
		auth.POST("/ports/:id/bind", s.handlePortBind)
		auth.POST("/ports/:id/release", s.handlePortRelease)

		auth.GET("/devices/:id/limiters", s.handleLimiterList)
		auth.POST("/devices/:id/limiters", s.handleLimiterCreate)
		auth.DELETE("/limiters/:id", s.handleLimiterDelete)

		auth.GET("/sites", s.handleSiteList)
		auth.POST("/sites", s.handleSiteCreate)
		auth.GET("/credentials", s.handleCredentialList)
		auth.POST("/credentials", s.handleCredentialCreate)

		auth.GET("/images", s.handleImageList)
		auth.POST("/images", s.handleImageCreate)
		auth.POST("/jobs", s.handleJobCreate)
	}
	return r
}

// fail maps the error taxonomy onto HTTP status codes.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, util.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, util.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, util.ErrParse):
		status = http.StatusBadRequest
	case errors.Is(err, util.ErrUnsupported):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, util.ErrDeviceLocked):
		status = http.StatusConflict
	case errors.Is(err, util.ErrAuthFailed),
		errors.Is(err, util.ErrUnreachable),
		errors.Is(err, util.ErrTimeout),
		errors.Is(err, util.ErrCommandFailed),
		errors.Is(err, util.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// idParam parses the :id path segment.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// ── Devices ──────────────────────────────────────────────────────────────

func (s *Server) handleDeviceList(c *gin.Context) {
	devices, err := s.engine.Store.ListDevices()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": devices})
}

func (s *Server) handleDeviceAdd(c *gin.Context) {
	var body struct {
		IP           string `json:"ip" binding:"required"`
		Dialect      string `json:"dialect" binding:"required"`
		Role         string `json:"role"`
		CredentialID uint   `json:"credential_id" binding:"required"`
		SiteID       *uint  `json:"site_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dev, err := s.engine.AddDevice(c.Request.Context(), fleet.AddDeviceRequest{
		IP:           body.IP,
		Dialect:      store.Dialect(body.Dialect),
		Role:         store.Role(body.Role),
		CredentialID: body.CredentialID,
		SiteID:       body.SiteID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": dev})
}

func (s *Server) handleDeviceGet(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	dev, err := s.engine.Store.DeviceByID(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dev})
}

func (s *Server) handleDeviceDelete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := s.engine.Store.DeviceByID(id); err != nil {
		fail(c, err)
		return
	}
	if err := s.engine.Store.DeleteDevice(id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Backups / snapshots ──────────────────────────────────────────────────

func (s *Server) handleBackupRun(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	snap, err := s.engine.RunBackup(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": snap})
}

func (s *Server) handleDiagnostic(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var body struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := s.engine.Diagnose(c.Request.Context(), id, body.Action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"output": out}})
}

func (s *Server) handleSnapshotList(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	snaps, err := s.engine.Store.SnapshotsByDevice(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snaps})
}

// serveSnapshotFile streams one artifact of a snapshot.
func (s *Server) serveSnapshotFile(c *gin.Context, pick func(*store.ConfigSnapshot) string, missing string) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	snap, err := s.engine.Store.SnapshotByID(id)
	if err != nil {
		fail(c, err)
		return
	}
	path := pick(snap)
	if path == "" {
		fail(c, util.NewNotFoundError(missing, strconv.FormatUint(uint64(id), 10)))
		return
	}
	if _, err := os.Stat(path); err != nil {
		fail(c, util.NewNotFoundError(missing, path))
		return
	}
	c.File(path)
}

func (s *Server) handleSnapshotExport(c *gin.Context) {
	s.serveSnapshotFile(c, func(snap *store.ConfigSnapshot) string { return snap.ExportPath }, "export")
}

func (s *Server) handleSnapshotDiff(c *gin.Context) {
	s.serveSnapshotFile(c, func(snap *store.ConfigSnapshot) string { return snap.DiffPath }, "diff")
}

// ── Ports ────────────────────────────────────────────────────────────────

func (s *Server) handlePortList(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ports, err := s.engine.Store.PortsByDevice(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ports})
}

func (s *Server) handlePortSync(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	report, err := s.engine.SyncPorts(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) handlePortStats(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ports, err := s.engine.Store.PortsByDevice(id)
	if err != nil {
		fail(c, err)
		return
	}
	stats := map[string]int{"total": len(ports)}
	for _, p := range ports {
		switch p.Status {
		case parse.StatusFree:
			stats["free"]++
		case parse.StatusAssigned:
			stats["assigned"]++
		case parse.StatusAssignedToClient:
			stats["assigned_to_client"]++
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) handlePortBind(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := inventory.New(s.engine.Store).BindPortToClient(id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePortRelease(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := inventory.New(s.engine.Store).ReleaseClientBinding(id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Limiters ─────────────────────────────────────────────────────────────

func (s *Server) handleLimiterList(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	limiters, err := s.engine.Store.LimitersByDevice(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": limiters})
}

func (s *Server) handleLimiterCreate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var body struct {
		Name      string `json:"name" binding:"required"`
		Bandwidth string `json:"bandwidth" binding:"required"`
		Target    string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := s.engine.CreateLimiter(c.Request.Context(), id, driver.LimiterSpec{
		Name:      body.Name,
		Bandwidth: body.Bandwidth,
		Target:    body.Target,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": row})
}

func (s *Server) handleLimiterDelete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.engine.DeleteLimiter(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Sites / credentials ──────────────────────────────────────────────────

func (s *Server) handleSiteList(c *gin.Context) {
	sites, err := s.engine.Store.ListSites()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sites})
}

func (s *Server) handleSiteCreate(c *gin.Context) {
	var body struct {
		Name     string `json:"name" binding:"required"`
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	site := &store.Site{Name: body.Name, Location: body.Location}
	if err := s.engine.Store.CreateSite(site); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": site})
}

func (s *Server) handleCredentialList(c *gin.Context) {
	creds, err := s.engine.Store.ListCredentials()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": creds})
}

func (s *Server) handleCredentialCreate(c *gin.Context) {
	var body struct {
		Name     string `json:"name" binding:"required"`
		Username string `json:"username" binding:"required"`
		Secret   string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred := &store.Credential{Name: body.Name, Username: body.Username, Secret: body.Secret}
	if err := s.engine.Store.CreateCredential(cred); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": cred})
}

// ── Golden images / jobs ─────────────────────────────────────────────────

func (s *Server) handleImageList(c *gin.Context) {
	imgs, err := s.engine.Store.ListImages()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": imgs})
}

func (s *Server) handleImageCreate(c *gin.Context) {
	var body struct {
		ModelName string `json:"model_name" binding:"required"`
		Filename  string `json:"filename" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img := &store.GoldenImage{ModelName: body.ModelName, Filename: body.Filename}
	if err := s.engine.Store.CreateImage(img); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": img})
}

func (s *Server) handleJobCreate(c *gin.Context) {
	var body struct {
		DeviceID      uint       `json:"device_id" binding:"required"`
		GoldenImageID uint       `json:"golden_image_id" binding:"required"`
		ScheduledAt   *time.Time `json:"scheduled_at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.engine.Store.DeviceByID(body.DeviceID); err != nil {
		fail(c, err)
		return
	}
	when := time.Now()
	if body.ScheduledAt != nil {
		when = *body.ScheduledAt
	}
	job := &store.PushJob{
		DeviceID:      body.DeviceID,
		GoldenImageID: body.GoldenImageID,
		Status:        store.JobPending,
		ScheduledAt:   when,
	}
	if err := s.engine.Store.CreateJob(job); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": job})
}
