// Package web serves the chatbot form and its JSON API.
package web

import (
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"healthbot/agent-app/config"
	"healthbot/agent-app/lib"
	"healthbot/agent-app/services/chat_service"
)

const (
	Title           = "Healthcare Chatbot"
	DefaultQuestion = "How to treat influenza at home?"

	platformKeyLabel  = "Enter PHI API Key"
	platformKeyHeader = "x-phi-api-key"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index.html").Parse(indexHTML))

type Server struct {
	svc *chat_service.Service
	cfg config.Config
}

func NewServer(svc *chat_service.Service, cfg config.Config) *Server {
	return &Server{svc: svc, cfg: cfg}
}

type page struct {
	Title            string
	PlatformKeyLabel string
	ModelKeyLabel    string
	PlatformKey      string
	ModelKey         string
	Question         string
	KeyWarning       string
	Warning          string
	Result           *chat_service.Submission
}

// NewRouter returns a gin engine with CORS open to all origins and every
// route registered.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, platformKeyHeader)
	r.Use(cors.New(corsConfig))

	r.SetHTMLTemplate(indexTemplate)
	s.Register(r)
	return r
}

func (s *Server) Register(r gin.IRoutes) {
	r.GET("/", s.index)
	r.POST("/", s.submit)
	r.POST("/api/ask", s.ask)
	r.GET("/api/history", s.history)
	r.GET("/healthz", s.health)
}

func (s *Server) newPage() page {
	return page{
		Title:            Title,
		PlatformKeyLabel: platformKeyLabel,
		ModelKeyLabel:    s.cfg.ModelKeyLabel(),
		Question:         DefaultQuestion,
		KeyWarning:       chat_service.MissingCredentialsWarning,
	}
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.newPage())
}

func (s *Server) submit(c *gin.Context) {
	p := s.newPage()
	var req chat_service.AskRequest
	if err := bindRequest(c, &req); err != nil {
		p.Result = &chat_service.Submission{Error: fmt.Sprintf("An error occurred: %v", err)}
		c.HTML(http.StatusBadRequest, "index.html", p)
		return
	}

	p.PlatformKey = req.PlatformKey
	p.ModelKey = req.ModelKey
	p.Question = req.Question
	if s.svc.CheckCredentials(req.Credentials) == nil {
		p.KeyWarning = ""
	}

	sub := s.svc.Ask(c.Request.Context(), req)
	if sub.Warning != chat_service.MissingCredentialsWarning {
		p.Warning = sub.Warning
	}
	p.Result = &sub
	c.HTML(http.StatusOK, "index.html", p)
}

func (s *Server) ask(c *gin.Context) {
	var req chat_service.AskRequest
	if err := bindRequest(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub := s.svc.Ask(c.Request.Context(), req)

	status := http.StatusOK
	switch {
	case sub.Warning != "":
		status = http.StatusBadRequest
	case sub.Error != "":
		status = http.StatusBadGateway
	}
	c.JSON(status, sub)
}

func (s *Server) history(c *gin.Context) {
	key := c.GetHeader(platformKeyHeader)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": chat_service.MissingCredentialsWarning})
		return
	}
	task, ok, err := s.svc.LastTask(key)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "load history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no task history"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.cfg.Provider, "model": s.cfg.Model})
}

// bindRequest decodes the request. Missing required fields are left for the
// service to report, so only malformed bodies fail here.
func bindRequest(c *gin.Context, req *chat_service.AskRequest) error {
	if err := c.ShouldBind(req); err != nil && len(lib.MissingFields(err)) == 0 {
		return err
	}
	return nil
}
