package report

// Response is the nested structure returned by the reporting API for a single query.
type Response struct {
	ID            string         `json:"id"`
	ColumnHeaders []ColumnHeader `json:"columnHeaders"`
	// Omitted by the API when the query has no results.
	Rows                [][]any `json:"rows,omitempty"`
	ContainsSampledData bool    `json:"containsSampledData"`
	TotalResults        int64   `json:"totalResults,omitempty"`
	ItemsPerPage        int64   `json:"itemsPerPage,omitempty"`
}

type ColumnHeader struct {
	// Prefixed with query.NamespacePrefix, e.g. "ga:pagePath".
	Name       string `json:"name"`
	ColumnType string `json:"columnType,omitempty"`
	DataType   string `json:"dataType,omitempty"`
}
