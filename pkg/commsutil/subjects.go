package commsutil

import "strings"

// Default COMMS subjects.
const (
	SubjectHost           = "customapp.host.v1"
	SubjectContextChanged = "customapp.context.changed"
)

// BuildContextChangedSubject builds the per-page context change event subject.
func BuildContextChangedSubject(page string) string {
	return SubjectContextChanged + "." + sanitize(page)
}

// BuildClientSubject builds the subject a client receives responses and notifications on.
func BuildClientSubject(clientID string) string {
	return "customapp.client." + sanitize(clientID)
}

func sanitize(token string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return r.Replace(token)
}
