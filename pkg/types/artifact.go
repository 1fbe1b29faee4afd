package types

// ArtifactFile is a single generated file. The pipeline never
// interprets Content; it is handed verbatim to the source host.
type ArtifactFile struct {
	Path    string
	Content string
}

// Artifact describes the output of one generation call.
type Artifact struct {
	ID       string
	TicketID string
	Language string
	Domain   string
	Summary  string
	Files    []ArtifactFile
}

// Repository identifies a target repository on the source host.
type Repository struct {
	Owner      string
	Name       string
	BaseBranch string
}
