package api

import (
	"fmt"

	"github.com/neurosim/neurosim/telemetry/store"
)

// StatusError is the error the server returns for any failed request.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the neurosim server logs for details"
	}
}

// VersionResponse is returned by [Client.Version].
type VersionResponse struct {
	Version string `json:"version"`
}

// NamesResponse lists the summary names present in the telemetry store.
type NamesResponse struct {
	Names []string `json:"names"`
}

// SeriesRequest selects one summary's records, optionally restricted to a
// single run.
type SeriesRequest struct {
	Name  string `json:"name"`
	RunID string `json:"run_id,omitempty"`
}

// SeriesResponse carries one summary's histogram records ordered by step.
type SeriesResponse struct {
	Name    string         `json:"name"`
	RunID   string         `json:"run_id,omitempty"`
	Records []store.Record `json:"records"`
}
