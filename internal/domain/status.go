package domain

// Status is the Media Record's lifecycle state (§4.1 of the spec).
type Status string

const (
	StatusRequested       Status = "REQUESTED"
	StatusDownloading     Status = "DOWNLOADING"
	StatusDownloadComplete Status = "DOWNLOAD_COMPLETE"
	StatusTranscoding     Status = "TRANSCODING"
	StatusReady           Status = "READY"
	StatusError           Status = "ERROR"
)

// validTransitions is the adjacency list of legal status transitions.
// READY and ERROR are terminal: they leave only through an explicit
// re-download command that resets the record to REQUESTED, which is
// handled one level up (the reset itself is not a "transition" from
// the machine's point of view — it is a fresh record).
var validTransitions = map[Status][]Status{
	StatusRequested:        {StatusDownloading, StatusError},
	StatusDownloading:      {StatusDownloadComplete, StatusTranscoding, StatusError},
	StatusDownloadComplete: {StatusTranscoding, StatusError},
	StatusTranscoding:      {StatusReady, StatusError},
	StatusReady:            {},
	StatusError:            {},
}

// CanTransition reports whether moving from one status to another is a
// legal transition under §4.1.
func CanTransition(from, to Status) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
