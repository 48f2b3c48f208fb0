package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/portwatch/portwatch/pkg/model"
)

// Report is the document written by WriteJSON and served by the HTTP API.
type Report struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	View        model.View         `json:"view"`
	Status      string             `json:"status,omitempty"`
	Docker      string             `json:"docker,omitempty"`
	Rows        []model.DisplayRow `json:"rows"`
}

func WriteJSON(w io.Writer, r Report) error {
	if r.Rows == nil {
		r.Rows = []model.DisplayRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
