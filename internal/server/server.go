package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/cedula-processor/internal/isr"
	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/logger"
	"github.com/rezonia/cedula-processor/internal/processor"
	"github.com/rezonia/cedula-processor/internal/report"
	"github.com/rezonia/cedula-processor/internal/source"
	"github.com/rezonia/cedula-processor/pkg/cedulalib"
)

// Upload form fields. Each may carry several .xml or .zip files.
const (
	FieldIncome      = "income"
	FieldExpense     = "expense"
	FieldWithholding = "withholding"
	FieldFiles       = "files"
	FieldISRTable    = "isr_table"
)

// MaxUploadSize is the default bound on a request body
const MaxUploadSize = 256 << 20

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
	Workers      int

	// MaxUploadSize bounds request bodies; 0 means MaxUploadSize
	MaxUploadSize int64

	// Defaults for requests that do not send them
	FiscalYear int
	RFC        string
	IVAMode    iva.Mode

	Logger *logger.Logger
}

// Server represents the HTTP API server
type Server struct {
	config *Config
	router *gin.Engine
	log    *logger.Logger
}

// NewServer creates a new API server
func NewServer(config *Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.MaxMultipartMemory = 32 << 20

	s := &Server{
		config: config,
		router: router,
		log:    log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/parse", s.handleParse)
		v1.POST("/cedula", s.handleCedula)
	}
}

// Run starts the HTTP server and shuts it down when ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("address", s.config.Address).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"time":       time.Now().UTC().Format(time.RFC3339),
		"isr_tables": isr.AvailableYears(),
	})
}

// handleParse parses uploaded documents without computing a cedula. It
// accepts multipart files under "files" or a single raw XML body.
func (s *Server) handleParse(c *gin.Context) {
	s.limitBody(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	var files []source.File
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(readStatus(err), ErrorResponse{Error: "multipart form expected", Details: err.Error()})
			return
		}
		files, err = readUploads(form.File[FieldFiles], "")
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read upload", Details: err.Error()})
			return
		}
	} else {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(readStatus(err), ErrorResponse{Error: "failed to read request body", Details: err.Error()})
			return
		}
		if len(body) > 0 {
			files, err = expand("body.xml", body)
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body", Details: err.Error()})
				return
			}
		}
	}

	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no documents uploaded"})
		return
	}

	pipeline := processor.NewPipeline(
		processor.WithLogger(s.log.Component("parser")),
		processor.WithWorkers(s.config.Workers),
	)
	batch, err := pipeline.ProcessBatch(ctx, files)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "parsing aborted", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, ParseResponse{
		Documents:    report.DocumentRows(batch.Results),
		Invoices:     len(batch.Invoices),
		Withholdings: len(batch.Withholdings),
		Skipped:      batch.Skipped,
	})
}

// handleCedula computes a cedula from uploaded income, expense and
// withholding documents. ?format=xlsx returns the workbook instead of JSON.
func (s *Server) handleCedula(c *gin.Context) {
	s.limitBody(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(readStatus(err), ErrorResponse{Error: "multipart form expected", Details: err.Error()})
		return
	}

	req, err := s.cedulaRequest(c, form)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: err.Error()})
		return
	}

	var files []source.File
	for _, field := range []string{FieldIncome, FieldExpense, FieldWithholding} {
		found, err := readUploads(form.File[field], field)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read upload", Details: err.Error()})
			return
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no documents uploaded"})
		return
	}

	proc, err := cedulalib.NewProcessor(cedulalib.Options{
		FiscalYear:  req.FiscalYear,
		RFC:         req.RFC,
		IVAMode:     req.IVAMode,
		IncomeRoot:  FieldIncome,
		ExpenseRoot: FieldExpense,
		Schedule:    req.Schedule,
		Workers:     s.config.Workers,
		Logger:      s.log,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "failed to load ISR table", Details: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	res, err := proc.Compute(ctx, files)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "computation failed", Details: err.Error()})
		return
	}

	if c.Query("format") == "xlsx" {
		s.sendWorkbook(c, res)
		return
	}
	c.JSON(http.StatusOK, CedulaResponse{Cedula: res.Cedula})
}

func (s *Server) limitBody(c *gin.Context) {
	limit := s.config.MaxUploadSize
	if limit <= 0 {
		limit = MaxUploadSize
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
}

// readStatus maps a body read failure to 413 when the size limit was hit
func readStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

type cedulaRequest struct {
	FiscalYear int
	RFC        string
	IVAMode    iva.Mode
	Schedule   *isr.Schedule
}

func (s *Server) cedulaRequest(c *gin.Context, form *multipart.Form) (*cedulaRequest, error) {
	req := &cedulaRequest{
		FiscalYear: s.config.FiscalYear,
		RFC:        s.config.RFC,
		IVAMode:    s.config.IVAMode,
	}

	if v := c.PostForm("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("year: %w", err)
		}
		req.FiscalYear = year
	}
	if req.FiscalYear < 2000 || req.FiscalYear > 2100 {
		return nil, fmt.Errorf("year must be between 2000 and 2100")
	}

	if v := c.PostForm("rfc"); v != "" {
		req.RFC = v
	}
	if v := c.PostForm("iva_mode"); v != "" {
		mode, err := iva.ParseMode(v)
		if err != nil {
			return nil, err
		}
		req.IVAMode = mode
	}

	if tables := form.File[FieldISRTable]; len(tables) > 0 {
		f, err := tables[0].Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()

		schedule, err := isr.LoadScheduleFrom(f, filepath.Ext(tables[0].Filename))
		if err != nil {
			return nil, fmt.Errorf("isr_table: %w", err)
		}
		schedule.Name = tables[0].Filename
		req.Schedule = schedule
	}
	return req, nil
}

func (s *Server) sendWorkbook(c *gin.Context, res *cedulalib.Result) {
	dir, err := os.MkdirTemp("", "cedula-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to prepare workbook"})
		return
	}
	defer os.RemoveAll(dir)

	name := fmt.Sprintf("cedula_%d.xlsx", res.Cedula.FiscalYear)
	out := filepath.Join(dir, name)
	if err := report.WriteWorkbook(out, res.Cedula, report.Details{
		Documents:    res.Documents,
		Withholdings: res.Withholdings,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to write workbook", Details: err.Error()})
		return
	}

	c.FileAttachment(out, name)
}

// readUploads reads uploaded files, expanding zip archives. Each document
// path is prefixed with prefix so the classifier can route it.
func readUploads(headers []*multipart.FileHeader, prefix string) ([]source.File, error) {
	var files []source.File
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}

		name := path.Base(filepath.ToSlash(fh.Filename))
		if prefix != "" {
			name = prefix + "/" + name
		}
		found, err := expand(name, data)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func expand(name string, data []byte) ([]source.File, error) {
	if processor.DetectFormat(data) == processor.FormatZip {
		return source.ExpandZip(name, data)
	}
	return []source.File{{Path: name, Data: data}}, nil
}
