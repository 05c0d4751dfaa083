package config

// DefaultTemperature is the completion sampling temperature used when none is configured.
const DefaultTemperature = 0.7

// DefaultSystemPrompt is the fixed system instruction for answering chat questions.
const DefaultSystemPrompt = "You are an expert on Risk of Rain 2 gameplay. " +
	"You have access to the official wiki content. " +
	"Answer concisely, focusing strictly on gameplay. " +
	"Answers should be no more than 2 or 3 sentences in length. " +
	"If the question is not about gameplay, you should refuse to answer."

// DefaultTopicKeywords are the words that mark a question as gameplay related.
var DefaultTopicKeywords = []string{
	"build", "strategy", "items", "gameplay", "enemies", "boss", "stage", "map", "artifact",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/db/chunks.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "./data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "./data/indices/vectors"
	}

	if cfg.Wiki.BaseURL == "" {
		cfg.Wiki.BaseURL = "https://riskofrain2.fandom.com"
	}
	if cfg.Wiki.StartPage == "" {
		cfg.Wiki.StartPage = "/wiki/Risk_of_Rain_2_Wiki"
	}
	if cfg.Wiki.ArticlePrefix == "" {
		cfg.Wiki.ArticlePrefix = "/wiki/"
	}
	if cfg.Wiki.ExcludePrefixes == nil {
		cfg.Wiki.ExcludePrefixes = []string{"/wiki/Special"}
	}
	if cfg.Wiki.ContainerClass == "" {
		cfg.Wiki.ContainerClass = "mw-parser-output"
	}
	if cfg.Wiki.MaxPages == 0 {
		cfg.Wiki.MaxPages = 5
	}
	if cfg.Wiki.UserAgent == "" {
		cfg.Wiki.UserAgent = "wikichat/1.0"
	}
	if cfg.Wiki.OutputPath == "" {
		cfg.Wiki.OutputPath = "./wiki_data.txt"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Completion.APIKeyEnv == "" {
		cfg.Completion.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 300
	}
	if cfg.Completion.Temperature == nil {
		t := DefaultTemperature
		cfg.Completion.Temperature = &t
	}
	if cfg.Completion.SystemPrompt == "" {
		cfg.Completion.SystemPrompt = DefaultSystemPrompt
	}

	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "ror2_wiki"
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 1000
	}
	if cfg.Index.VectorType == "" {
		cfg.Index.VectorType = "memory"
	}
	if cfg.Index.Qdrant.URL == "" {
		cfg.Index.Qdrant.URL = "http://localhost:6333"
	}

	if cfg.Chat.TokenEnv == "" {
		cfg.Chat.TokenEnv = "TWITCH_BOT_TOKEN"
	}
	if cfg.Chat.Prefix == "" {
		cfg.Chat.Prefix = "!"
	}
	if cfg.Chat.Command == "" {
		cfg.Chat.Command = "ror2"
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 3
	}
	if cfg.Chat.MaxReplyLength == 0 {
		cfg.Chat.MaxReplyLength = 400
	}
	if cfg.Chat.TopicKeywords == nil {
		cfg.Chat.TopicKeywords = append([]string(nil), DefaultTopicKeywords...)
	}
	if cfg.Chat.QueueSize == 0 {
		cfg.Chat.QueueSize = 64
	}

	if cfg.Watch.DebounceMillis == 0 {
		cfg.Watch.DebounceMillis = 500
	}
}
