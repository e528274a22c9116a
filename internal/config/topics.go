package config

const (
	// TopicDocumentIngest carries one document ingestion unit per message.
	TopicDocumentIngest = "document.ingest"

	// TopicOriginalityCheck carries one thesis originality check per message.
	TopicOriginalityCheck = "originality.check"

	// ChannelBackend is the channel the Go workers consume from.
	ChannelBackend = "backend"
)

// Topics lists every topic the backend publishes to and consumes from.
var Topics = []string{TopicDocumentIngest, TopicOriginalityCheck}
