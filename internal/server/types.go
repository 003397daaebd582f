package server

import (
	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/report"
)

// ParseResponse is the response for the parse endpoint
type ParseResponse struct {
	Documents    []report.DocumentRow `json:"documents"`
	Invoices     int                  `json:"invoices"`
	Withholdings int                  `json:"withholdings"`
	Skipped      int                  `json:"skipped"`
}

// CedulaResponse is the response for the cedula endpoint
type CedulaResponse struct {
	Cedula *model.Cedula `json:"cedula"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
