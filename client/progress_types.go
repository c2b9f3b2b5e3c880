package client

// ProgressReport is sent to a ProgressReporter while a file streams in.
type ProgressReport struct {
	Name       string
	Current    int // index of the file being downloaded, starting at 1
	Total      int // number of files in the batch
	BytesRead  int64
	TotalBytes int64 // -1 when the portal sends no Content-Length
}

type ProgressReporter interface {
	Report(report ProgressReport)
}
