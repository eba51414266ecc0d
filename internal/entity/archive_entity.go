package entity

// DocumentRef points to one report document in the object store.
type DocumentRef struct {
	Key  string // object store key
	Name string // file name inside the archive
}

// ArchiveStats accounts for every requested document of a package.
type ArchiveStats struct {
	TotalRequested int      `json:"total_requested"`
	Downloaded     int      `json:"downloaded"`
	Errors         int      `json:"errors"`
	TotalSize      string   `json:"total_size"`
	ErrorDetails   []string `json:"error_details"`
}

// ArchiveResult is the outcome of a download package build.
type ArchiveResult struct {
	Success     bool
	FileName    string
	DownloadURL string
	Error       string
	Stats       ArchiveStats
}
