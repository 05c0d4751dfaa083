package models

// Status summarizes a collection for operators.
type Status struct {
	Collection     string `json:"collection"`
	Chunks         int64  `json:"chunks"`
	Pages          int64  `json:"pages"`
	Vectors        int    `json:"vectors"`
	LastBuild      *Build `json:"last_build,omitempty"`
	DiskUsageBytes int64  `json:"disk_usage_bytes,omitempty"`
	VectorType     string `json:"vector_type,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ChatModel      string `json:"chat_model,omitempty"`
}
