package domain

// Content is a text file as read from a content store.
type Content struct {
	Body string
	// Version is an opaque token identifying the state that was read (a blob SHA, a commit ID, a hash).
	// Updates are conditioned on it.
	Version string
}

// Committer is the identity an update is attributed to.
type Committer struct {
	Name  string
	Email string
}

// ContentUpdate describes a conditional write of a text file.
type ContentUpdate struct {
	Body      string
	Version   string
	Committer Committer
	Message   string
}
