package codec

import "github.com/SpacksD/Printer-connect/pkg/model"

// PrintJobParameters is the data.parameters object of a print_job message,
// spec §6.
type PrintJobParameters struct {
	DocumentName string         `json:"document_name"`
	PageSize     model.PageSize `json:"page_size"`
	Orientation  model.Orientation `json:"orientation"`
	Copies       int            `json:"copies"`
	Color        bool           `json:"color"`
	Duplex       bool           `json:"duplex"`
	Quality      model.Quality  `json:"quality"`
	Priority     int            `json:"priority"`
	Margins      model.Margins  `json:"margins"`
}

// PrintJobData is the data object of a print_job message, spec §6.
type PrintJobData struct {
	ClientID    string              `json:"client_id"`
	User        string              `json:"user"`
	FileFormat  string              `json:"file_format"`
	FileContent string              `json:"file_content"` // base64
	Parameters  PrintJobParameters  `json:"parameters"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
}
